// Package exchange implements the venue agent: it owns one order book per
// symbol, answers order and query messages through the kernel, and pushes
// market data to subscribers.
package exchange

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/fee"
	"github.com/akshitanchan/marketsim/internal/kernel"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/message"
	"github.com/akshitanchan/marketsim/internal/orderbook"
)

var (
	ErrNoSymbols       = errors.New("exchange lists no symbols")
	ErrDuplicateSymbol = errors.New("symbol listed twice")
	ErrBadHours        = errors.New("market close before open")
)

// Config describes one venue
type Config struct {
	Name    string
	Symbols []string
	Fees    fee.Schedule
	Open    domain.SimTime
	Close   domain.SimTime
	// SnapshotDepth is the number of levels kept in book snapshots. 0 uses
	// the book default.
	SnapshotDepth int
}

// Validate checks hours, symbols and the fee schedule
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return ErrNoSymbols
	}
	seen := make(map[string]struct{}, len(c.Symbols))
	for _, s := range c.Symbols {
		if _, dup := seen[s]; dup {
			return errors.Wrap(ErrDuplicateSymbol, s)
		}
		seen[s] = struct{}{}
	}
	if c.Close < c.Open {
		return errors.Wrapf(ErrBadHours, "%s < %s", c.Close, c.Open)
	}
	return c.Fees.Validate()
}

type subscription struct {
	agent       domain.AgentID
	symbol      string
	feed        message.Feed
	depth       int
	minInterval domain.SimTime
	lastPush    domain.SimTime
	pushed      bool
}

// Exchange is a kernel agent hosting one or more order books
type Exchange struct {
	id      domain.AgentID
	cfg     Config
	books   map[string]*orderbook.Book
	symbols []string
	subs    []*subscription
	closed  bool
	log     *logging.Logger

	// Stats
	OrdersReceived uint64
	Executions     uint64
	Volume         uint64
}

// New validates cfg and creates an exchange with empty books
func New(id domain.AgentID, cfg Config) (*Exchange, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "exchange %q", cfg.Name)
	}
	x := &Exchange{
		id:      id,
		cfg:     cfg,
		books:   make(map[string]*orderbook.Book, len(cfg.Symbols)),
		symbols: append([]string(nil), cfg.Symbols...),
		log:     logging.NewNopLogger(),
	}
	sort.Strings(x.symbols)
	for _, s := range x.symbols {
		b := orderbook.New(s, cfg.Fees)
		if cfg.SnapshotDepth > 0 {
			b.SnapshotDepth = cfg.SnapshotDepth
		}
		x.books[s] = b
	}
	return x, nil
}

func (x *Exchange) ID() domain.AgentID { return x.id }

// Name returns the configured venue name
func (x *Exchange) Name() string { return x.cfg.Name }

// Book returns the book for symbol, or nil
func (x *Exchange) Book(symbol string) *orderbook.Book { return x.books[symbol] }

// Fees returns the venue fee schedule
func (x *Exchange) Fees() fee.Schedule { return x.cfg.Fees }

// Closed reports whether the venue has passed its close time
func (x *Exchange) Closed() bool { return x.closed }

func (x *Exchange) OnStart(env kernel.Env, start domain.SimTime) error {
	x.log = env.Logger().Named("exchange").With(logging.String("venue", x.cfg.Name))
	// Close is inclusive, so the venue shuts one tick later.
	_, err := env.ScheduleWakeup(max(x.cfg.Close+1, start))
	return err
}

func (x *Exchange) OnWakeup(env kernel.Env, now domain.SimTime) error {
	if x.closed || now <= x.cfg.Close {
		return nil
	}
	x.closed = true
	x.log.Info("market closed", logging.SimTime("now", now))
	notified := make(map[domain.AgentID]struct{})
	for _, s := range x.subs {
		if _, done := notified[s.agent]; done {
			continue
		}
		notified[s.agent] = struct{}{}
		if err := env.Send(s.agent, message.MarketClosed{Time: now}); err != nil {
			return err
		}
	}
	return nil
}

func (x *Exchange) open(now domain.SimTime) bool {
	return !x.closed && now >= x.cfg.Open && now <= x.cfg.Close
}

func (x *Exchange) OnMessage(env kernel.Env, now domain.SimTime, from domain.AgentID, msg message.Message) error {
	switch m := msg.(type) {
	case message.LimitOrder:
		return x.handleLimit(env, now, from, m.Order)
	case message.MarketOrder:
		return x.handleMarket(env, now, from, m.Order)
	case message.CancelOrder:
		return x.handleCancel(env, now, from, m)
	case message.SpreadQuery:
		return x.handleSpread(env, from, m)
	case message.MarketHoursQuery:
		return env.Send(from, message.MarketHoursResponse{Open: x.cfg.Open, Close: x.cfg.Close})
	case message.Subscribe:
		return x.handleSubscribe(env, now, from, m)
	case message.Unsubscribe:
		x.unsubscribe(from, m.Symbol, m.Feed)
		return nil
	default:
		x.log.Debug("ignoring message",
			logging.AgentID(from),
			logging.String("kind", msg.Kind().String()))
		return nil
	}
}

func (x *Exchange) handleLimit(env kernel.Env, now domain.SimTime, from domain.AgentID, o domain.Order) error {
	o.Owner = from
	o.IsMarket = false
	x.OrdersReceived++
	env.Record(&eventlog.Record{Type: eventlog.TypeOrderSubmitted, Symbol: o.Symbol, Order: o.Clone()})

	if !x.open(now) {
		return x.reject(env, from, o, message.RejectMarketClosed)
	}
	book, ok := x.books[o.Symbol]
	if !ok {
		return x.reject(env, from, o, message.RejectUnknownSymbol)
	}
	return x.settle(env, now, from, book, book.SubmitLimitOrder(o, now))
}

func (x *Exchange) handleMarket(env kernel.Env, now domain.SimTime, from domain.AgentID, o domain.Order) error {
	o.Owner = from
	o.IsMarket = true
	o.Price = 0
	x.OrdersReceived++
	env.Record(&eventlog.Record{Type: eventlog.TypeOrderSubmitted, Symbol: o.Symbol, Order: o.Clone()})

	if !x.open(now) {
		return x.reject(env, from, o, message.RejectMarketClosed)
	}
	book, ok := x.books[o.Symbol]
	if !ok {
		return x.reject(env, from, o, message.RejectUnknownSymbol)
	}
	return x.settle(env, now, from, book, book.SubmitMarketOrder(o.ID, from, o.Quantity, o.Side, now))
}

// settle reports a submission result: the order status to the sender, then
// every fill to both counterparties, then market data if the book changed.
func (x *Exchange) settle(env kernel.Env, now domain.SimTime, from domain.AgentID, book *orderbook.Book, res orderbook.Result) error {
	if res.Status == orderbook.Rejected {
		if err := x.reject(env, from, res.Order, res.Reason); err != nil {
			return err
		}
	} else {
		env.Record(&eventlog.Record{Type: eventlog.TypeOrderAccepted, Symbol: book.Symbol, Order: res.Order.Clone()})
		if err := env.Send(from, message.OrderAccepted{Order: res.Order}); err != nil {
			return err
		}
	}

	for i := range res.Executions {
		exec := res.Executions[i]
		x.Executions++
		x.Volume += exec.Quantity
		env.Record(&eventlog.Record{Type: eventlog.TypeOrderExecuted, Symbol: book.Symbol, Execution: &exec})
		if err := env.Send(exec.Maker.Agent, message.OrderExecuted{Execution: exec, OrderID: exec.Maker.OrderID}); err != nil {
			return err
		}
		if err := env.Send(exec.Taker.Agent, message.OrderExecuted{Execution: exec, OrderID: exec.Taker.OrderID}); err != nil {
			return err
		}
	}

	if res.Status == orderbook.Accepted || len(res.Executions) > 0 {
		x.recordSnapshot(env, book)
		return x.publish(env, now, book)
	}
	return nil
}

func (x *Exchange) reject(env kernel.Env, to domain.AgentID, o domain.Order, reason message.RejectReason) error {
	env.Record(&eventlog.Record{Type: eventlog.TypeOrderRejected, Symbol: o.Symbol, Order: o.Clone(), Reason: string(reason)})
	return env.Send(to, message.OrderRejected{Order: o, Reason: reason})
}

func (x *Exchange) handleCancel(env kernel.Env, now domain.SimTime, from domain.AgentID, m message.CancelOrder) error {
	cancelReject := func(reason message.RejectReason) error {
		env.Record(&eventlog.Record{
			Type:   eventlog.TypeCancelRejected,
			Symbol: m.Symbol,
			Order:  &domain.Order{ID: m.OrderID, Symbol: m.Symbol, Owner: from},
			Reason: string(reason),
		})
		return env.Send(from, message.CancelRejected{Symbol: m.Symbol, OrderID: m.OrderID, Reason: reason})
	}

	if !x.open(now) {
		return cancelReject(message.RejectMarketClosed)
	}
	book, ok := x.books[m.Symbol]
	if !ok {
		return cancelReject(message.RejectUnknownSymbol)
	}
	// Agents may only cancel their own orders; anything else looks absent.
	if o, ok := book.Order(m.OrderID); !ok || o.Owner != from {
		return cancelReject(message.RejectNotFound)
	}

	res := book.CancelOrder(m.OrderID, now)
	if res.Status == orderbook.NotFound {
		return cancelReject(message.RejectNotFound)
	}
	env.Record(&eventlog.Record{Type: eventlog.TypeOrderCancelled, Symbol: m.Symbol, Order: res.Order.Clone()})
	if err := env.Send(from, message.OrderCancelled{Order: res.Order}); err != nil {
		return err
	}
	x.recordSnapshot(env, book)
	return x.publish(env, now, book)
}

func (x *Exchange) handleSpread(env kernel.Env, from domain.AgentID, m message.SpreadQuery) error {
	resp := message.SpreadResponse{MarketClosed: x.closed}
	book, ok := x.books[m.Symbol]
	if !ok {
		resp.Book = domain.L2{Symbol: m.Symbol, Time: env.Now()}
		return env.Send(from, resp)
	}
	resp.Book = book.L2(max(m.Depth, 1))
	resp.Book.Time = env.Now()
	resp.LastTrade, resp.LastTradeTime, resp.HasLastTrade = book.LastTrade()
	return env.Send(from, resp)
}

func (x *Exchange) handleSubscribe(env kernel.Env, now domain.SimTime, from domain.AgentID, m message.Subscribe) error {
	book, ok := x.books[m.Symbol]
	if !ok {
		x.log.Debug("subscribe to unknown symbol", logging.AgentID(from), logging.Symbol(m.Symbol))
		return nil
	}
	x.unsubscribe(from, m.Symbol, m.Feed)
	s := &subscription{
		agent:       from,
		symbol:      m.Symbol,
		feed:        m.Feed,
		depth:       max(m.Depth, 1),
		minInterval: max(m.MinInterval, 0),
	}
	x.subs = append(x.subs, s)
	return x.push(env, now, book, s)
}

func (x *Exchange) unsubscribe(agent domain.AgentID, symbol string, feed message.Feed) {
	kept := x.subs[:0]
	for _, s := range x.subs {
		if s.agent == agent && s.symbol == symbol && s.feed == feed {
			continue
		}
		kept = append(kept, s)
	}
	x.subs = kept
}

// publish pushes the book's state to its subscribers in subscription order,
// skipping any whose minimum interval has not elapsed.
func (x *Exchange) publish(env kernel.Env, now domain.SimTime, book *orderbook.Book) error {
	for _, s := range x.subs {
		if s.symbol != book.Symbol {
			continue
		}
		if s.pushed && now-s.lastPush < s.minInterval {
			continue
		}
		if err := x.push(env, now, book, s); err != nil {
			return err
		}
	}
	return nil
}

func (x *Exchange) push(env kernel.Env, now domain.SimTime, book *orderbook.Book, s *subscription) error {
	var msg message.Message
	switch s.feed {
	case message.FeedL1:
		q := book.L1()
		q.Time = now
		msg = message.L1Update{Quote: q}
	case message.FeedL2:
		l2 := book.L2(s.depth)
		l2.Time = now
		msg = message.L2Update{Book: l2}
	case message.FeedImbalance:
		msg = message.ImbalanceUpdate{Symbol: book.Symbol, Time: now, Imbalance: book.Imbalance()}
	default:
		return nil
	}
	s.pushed = true
	s.lastPush = now
	return env.Send(s.agent, msg)
}

func (x *Exchange) recordSnapshot(env kernel.Env, book *orderbook.Book) {
	l2 := book.L2(book.SnapshotDepth)
	l2.Time = env.Now()
	env.Record(&eventlog.Record{Type: eventlog.TypeBookSnapshot, Symbol: book.Symbol, Book: &l2})
}

// FeeRevenue is the venue's net take across all books
func (x *Exchange) FeeRevenue() int64 {
	var total int64
	for _, b := range x.books {
		total += b.FeeRevenue
	}
	return total
}

func (x *Exchange) OnStop(env kernel.Env) error {
	for _, s := range x.symbols {
		x.recordSnapshot(env, x.books[s])
	}
	revenue := x.FeeRevenue()
	env.Record(&eventlog.Record{
		Type: eventlog.TypeVenueSummary,
		Values: map[string]int64{
			"fee_revenue":     revenue,
			"orders_received": int64(x.OrdersReceived),
			"executions":      int64(x.Executions),
			"volume":          int64(x.Volume),
		},
	})
	x.log.Info("venue summary",
		logging.Uint64("orders", x.OrdersReceived),
		logging.Uint64("executions", x.Executions),
		logging.Uint64("volume", x.Volume),
		logging.Int64("fee_revenue", revenue))
	return nil
}
