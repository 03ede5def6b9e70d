// Package trader holds the agent side of the protocol: an order-management
// helper that agents compose, an explicit agent state machine, and small
// reference agents used to populate runs.
package trader

import (
	"sort"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/kernel"
	"github.com/akshitanchan/marketsim/internal/message"
)

// Quote is the last market view an agent holds for one venue
type Quote struct {
	Book         domain.L2
	Top          domain.L1
	LastTrade    int64
	HasLastTrade bool
	Time         domain.SimTime
	MarketClosed bool
	Imbalance    float64
	HasImbalance bool
}

type outstanding struct {
	order domain.Order
	venue domain.AgentID
}

// OrderManager tracks one agent's orders, positions and market views. It
// sends through the agent's Env and is updated by Handle; it never touches
// another agent's state.
type OrderManager struct {
	orders   map[domain.OrderID]*outstanding
	Holdings map[string]int64
	Cash     int64
	FeesPaid int64
	Quotes   map[domain.AgentID]*Quote
	Hours    map[domain.AgentID]message.MarketHoursResponse

	Fills    int
	Rejected int
}

// NewOrderManager starts with the given cash, in ticks, and no holdings
func NewOrderManager(cash int64) *OrderManager {
	return &OrderManager{
		orders:   make(map[domain.OrderID]*outstanding),
		Holdings: make(map[string]int64),
		Cash:     cash,
		Quotes:   make(map[domain.AgentID]*Quote),
		Hours:    make(map[domain.AgentID]message.MarketHoursResponse),
	}
}

// PlaceLimit sends a limit order to venue and tracks it as outstanding
func (m *OrderManager) PlaceLimit(env kernel.Env, venue domain.AgentID, symbol string, side domain.Side, price int64, qty uint64) (domain.Order, error) {
	o := domain.Order{
		ID:         env.NextOrderID(),
		Symbol:     symbol,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		Original:   qty,
		Owner:      env.ID(),
		TimePlaced: env.Now(),
	}
	m.orders[o.ID] = &outstanding{order: o, venue: venue}
	return o, env.Send(venue, message.LimitOrder{Order: o})
}

// PlaceMarket sends a market order to venue
func (m *OrderManager) PlaceMarket(env kernel.Env, venue domain.AgentID, symbol string, side domain.Side, qty uint64) (domain.Order, error) {
	o := domain.Order{
		ID:         env.NextOrderID(),
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Original:   qty,
		Owner:      env.ID(),
		TimePlaced: env.Now(),
		IsMarket:   true,
	}
	m.orders[o.ID] = &outstanding{order: o, venue: venue}
	return o, env.Send(venue, message.MarketOrder{Order: o})
}

// Cancel asks the order's venue to remove it. Unknown ids are ignored
func (m *OrderManager) Cancel(env kernel.Env, id domain.OrderID) error {
	o, ok := m.orders[id]
	if !ok || o.order.IsMarket {
		return nil
	}
	return env.Send(o.venue, message.CancelOrder{Symbol: o.order.Symbol, OrderID: id})
}

// CancelAll cancels every outstanding limit order, oldest first
func (m *OrderManager) CancelAll(env kernel.Env) error {
	for _, id := range m.OutstandingIDs() {
		if err := m.Cancel(env, id); err != nil {
			return err
		}
	}
	return nil
}

// QuerySpread asks venue for its book to depth
func (m *OrderManager) QuerySpread(env kernel.Env, venue domain.AgentID, symbol string, depth int) error {
	return env.Send(venue, message.SpreadQuery{Symbol: symbol, Depth: depth})
}

// QueryHours asks venue for its open and close times
func (m *OrderManager) QueryHours(env kernel.Env, venue domain.AgentID) error {
	return env.Send(venue, message.MarketHoursQuery{})
}

// Subscribe requests market data pushes from venue
func (m *OrderManager) Subscribe(env kernel.Env, venue domain.AgentID, symbol string, feed message.Feed, depth int, every domain.SimTime) error {
	return env.Send(venue, message.Subscribe{Symbol: symbol, Feed: feed, Depth: depth, MinInterval: every})
}

// OutstandingIDs returns the ids of orders not yet known to be done, ascending
func (m *OrderManager) OutstandingIDs() []domain.OrderID {
	ids := make([]domain.OrderID, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Outstanding returns a copy of a tracked order
func (m *OrderManager) Outstanding(id domain.OrderID) (domain.Order, bool) {
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return o.order, true
}

func (m *OrderManager) quote(venue domain.AgentID) *Quote {
	q, ok := m.Quotes[venue]
	if !ok {
		q = &Quote{}
		m.Quotes[venue] = q
	}
	return q
}

// Handle applies a venue reply to the tracked state. It reports whether msg
// was one the manager understands.
func (m *OrderManager) Handle(now domain.SimTime, from domain.AgentID, msg message.Message) bool {
	switch r := msg.(type) {
	case message.OrderAccepted:
		if r.Order.IsMarket || r.Order.Quantity == 0 {
			delete(m.orders, r.Order.ID)
		} else if o, ok := m.orders[r.Order.ID]; ok {
			// Fills may overtake the acceptance; remaining only shrinks.
			o.order.Quantity = min(o.order.Quantity, r.Order.Quantity)
		}
	case message.OrderRejected:
		m.Rejected++
		delete(m.orders, r.Order.ID)
	case message.OrderCancelled:
		delete(m.orders, r.Order.ID)
	case message.CancelRejected:
		if r.Reason == message.RejectNotFound {
			delete(m.orders, r.OrderID)
		}
	case message.OrderExecuted:
		m.applyFill(r)
	case message.SpreadResponse:
		q := m.quote(from)
		q.Book = r.Book
		q.Top = r.Book.Top()
		q.LastTrade, q.HasLastTrade = r.LastTrade, r.HasLastTrade
		q.MarketClosed = r.MarketClosed
		q.Time = now
	case message.L1Update:
		q := m.quote(from)
		q.Top = r.Quote
		q.Time = now
	case message.L2Update:
		q := m.quote(from)
		q.Book = r.Book
		q.Top = r.Book.Top()
		q.Time = now
	case message.ImbalanceUpdate:
		q := m.quote(from)
		q.Imbalance, q.HasImbalance = r.Imbalance, true
		q.Time = now
	case message.MarketHoursResponse:
		m.Hours[from] = r
	case message.MarketClosed:
		m.quote(from).MarketClosed = true
	default:
		return false
	}
	return true
}

func (m *OrderManager) applyFill(r message.OrderExecuted) {
	leg := r.Leg()
	e := r.Execution
	notional := e.Notional()
	if leg.Side == domain.Bid {
		m.Holdings[e.Symbol] += int64(e.Quantity)
		m.Cash -= notional
	} else {
		m.Holdings[e.Symbol] -= int64(e.Quantity)
		m.Cash += notional
	}
	m.Cash -= leg.Fee
	m.FeesPaid += leg.Fee
	m.Fills++

	if o, ok := m.orders[r.OrderID]; ok {
		o.order.Quantity = leg.Remaining
		if leg.Remaining == 0 {
			delete(m.orders, r.OrderID)
		}
	}
}

// Summary returns the end-of-run figures recorded in agent_summary
func (m *OrderManager) Summary() map[string]int64 {
	out := map[string]int64{
		"cash":        m.Cash,
		"fees_paid":   m.FeesPaid,
		"fills":       int64(m.Fills),
		"rejected":    int64(m.Rejected),
		"outstanding": int64(len(m.orders)),
	}
	for sym, qty := range m.Holdings {
		out["holdings_"+sym] = qty
	}
	return out
}
