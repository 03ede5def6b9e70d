// Package orderbook implements a single-instrument limit order book
// with price-time priority matching
package orderbook

import (
	"container/list"
	"fmt"

	"github.com/google/btree"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/fee"
	"github.com/akshitanchan/marketsim/internal/message"
)

// DefaultSnapshotDepth is the number of levels kept in history snapshots
const DefaultSnapshotDepth = 10

// PriceLevel holds all resting orders at a single price, in FIFO order
type PriceLevel struct {
	Price  int64
	Orders *list.List // of *domain.Order
	Volume uint64     // sum of remaining quantities
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price, Orders: list.New()}
}

func bidLess(a, b *PriceLevel) bool { return a.Price > b.Price }
func askLess(a, b *PriceLevel) bool { return a.Price < b.Price }

type resting struct {
	order *domain.Order
	level *PriceLevel
	elem  *list.Element
}

// Status is the outcome of a submission
type Status uint8

const (
	Accepted Status = iota
	Rejected
)

func (s Status) String() string {
	if s == Rejected {
		return "REJECTED"
	}
	return "ACCEPTED"
}

// Result is returned by order submissions. Executions are in match order.
// A rejected market order may still carry executions for the part that filled
type Result struct {
	Status     Status
	Reason     message.RejectReason
	Order      domain.Order
	Executions []domain.Execution
	Rested     bool
}

// CancelStatus is the outcome of a cancel
type CancelStatus uint8

const (
	Cancelled CancelStatus = iota
	NotFound
)

func (s CancelStatus) String() string {
	if s == NotFound {
		return "NOT_FOUND"
	}
	return "CANCELLED"
}

// CancelResult is returned by CancelOrder. Order holds the quantity removed
type CancelResult struct {
	Status CancelStatus
	Order  domain.Order
}

// Entry is one append-only history item: an execution or a depth snapshot
type Entry struct {
	Time      domain.SimTime
	Execution *domain.Execution `json:",omitempty"`
	Snapshot  *domain.L2        `json:",omitempty"`
}

// Book is a single-instrument limit order book
type Book struct {
	Symbol string

	bids *btree.BTreeG[*PriceLevel] // Min is the best (highest) bid
	asks *btree.BTreeG[*PriceLevel] // Min is the best (lowest) ask

	// orders maps order ID to its resting position for O(1) cancel
	orders map[domain.OrderID]*resting

	fees fee.Schedule

	nextExecID     uint64
	lastTradePrice int64
	lastTradeTime  domain.SimTime
	hasTraded      bool

	history       []Entry
	SnapshotDepth int

	// FeeRevenue is the venue's net take: all charges minus all rebates
	FeeRevenue int64
}

// New creates an empty order book charging fees per the given schedule
func New(symbol string, fees fee.Schedule) *Book {
	return &Book{
		Symbol:        symbol,
		bids:          btree.NewG[*PriceLevel](8, bidLess),
		asks:          btree.NewG[*PriceLevel](8, askLess),
		orders:        make(map[domain.OrderID]*resting),
		fees:          fees,
		SnapshotDepth: DefaultSnapshotDepth,
	}
}

func (b *Book) ladder(side domain.Side) *btree.BTreeG[*PriceLevel] {
	if side == domain.Bid {
		return b.bids
	}
	return b.asks
}

func (b *Book) reject(o domain.Order, reason message.RejectReason) Result {
	return Result{Status: Rejected, Reason: reason, Order: o}
}

// SubmitLimitOrder matches the order against the opposite side and rests any
// remainder at its limit price
func (b *Book) SubmitLimitOrder(o domain.Order, now domain.SimTime) Result {
	o.IsMarket = false
	o.TimePlaced = now
	if o.Original == 0 {
		o.Original = o.Quantity
	}
	switch {
	case o.Symbol != b.Symbol:
		return b.reject(o, message.RejectUnknownSymbol)
	case !o.Side.Valid():
		return b.reject(o, message.RejectInvalidSide)
	case o.Quantity == 0:
		return b.reject(o, message.RejectInvalidQuantity)
	case o.Price <= 0:
		return b.reject(o, message.RejectInvalidPrice)
	case !domain.NotionalFits(o.Price, o.Quantity):
		return b.reject(o, message.RejectInvalidQuantity)
	}
	if _, dup := b.orders[o.ID]; dup {
		return b.reject(o, message.RejectDuplicateOrder)
	}

	order := &o
	execs := b.match(order, now)
	res := Result{Status: Accepted, Executions: execs}

	// If not fully filled, rest on the book
	if order.Quantity > 0 {
		b.insert(order)
		res.Rested = true
	}
	res.Order = *order
	b.snapshot(now)
	return res
}

// SubmitMarketOrder sweeps the opposite side from the best level outward.
// Nothing rests: an unfilled remainder is rejected with
// InsufficientLiquidity while the fills already made stand
func (b *Book) SubmitMarketOrder(id domain.OrderID, owner domain.AgentID, quantity uint64, side domain.Side, now domain.SimTime) Result {
	o := domain.Order{
		ID:         id,
		Symbol:     b.Symbol,
		Side:       side,
		Quantity:   quantity,
		Original:   quantity,
		Owner:      owner,
		TimePlaced: now,
		IsMarket:   true,
	}
	switch {
	case !side.Valid():
		return b.reject(o, message.RejectInvalidSide)
	case quantity == 0, !domain.NotionalFits(0, quantity):
		return b.reject(o, message.RejectInvalidQuantity)
	}

	execs := b.match(&o, now)
	res := Result{Status: Accepted, Order: o, Executions: execs}
	if o.Quantity > 0 {
		res.Status = Rejected
		res.Reason = message.RejectInsufficientLiquidity
	}
	if len(execs) > 0 {
		b.snapshot(now)
	}
	return res
}

// CancelOrder removes a resting order. Unknown, filled, or already cancelled
// ids return NotFound and leave the book untouched
func (b *Book) CancelOrder(id domain.OrderID, now domain.SimTime) CancelResult {
	r, ok := b.orders[id]
	if !ok {
		return CancelResult{Status: NotFound, Order: domain.Order{ID: id, Symbol: b.Symbol}}
	}
	b.remove(r)
	b.snapshot(now)
	return CancelResult{Status: Cancelled, Order: *r.order}
}

func crosses(in *domain.Order, levelPrice int64) bool {
	if in.IsMarket {
		return true
	}
	if in.Side == domain.Bid {
		return in.Price >= levelPrice
	}
	return in.Price <= levelPrice
}

// match fills the incoming order against the opposite side
func (b *Book) match(in *domain.Order, now domain.SimTime) []domain.Execution {
	var execs []domain.Execution
	opposite := b.ladder(in.Side.Opposite())

	for in.Quantity > 0 {
		level, ok := opposite.Min()
		if !ok || !crosses(in, level.Price) {
			break
		}

		// Walk orders at this level in FIFO order
		pos := 1
		for e := level.Orders.Front(); e != nil && in.Quantity > 0; {
			next := e.Next()
			rest := e.Value.(*domain.Order)
			qty := min(in.Quantity, rest.Quantity)

			in.Quantity -= qty
			rest.Quantity -= qty
			level.Volume -= qty

			execs = append(execs, b.execute(rest, in, qty, pos, now))

			if rest.Quantity == 0 {
				level.Orders.Remove(e)
				delete(b.orders, rest.ID)
			} else {
				pos++
			}
			e = next
		}

		if level.Orders.Len() == 0 {
			opposite.Delete(level)
		}
	}
	return execs
}

// execute prices one fill at the resting order's price and charges both legs
func (b *Book) execute(rest, in *domain.Order, qty uint64, pos int, now domain.SimTime) domain.Execution {
	b.nextExecID++
	exec := domain.Execution{
		ID:       b.nextExecID,
		Symbol:   b.Symbol,
		Price:    rest.Price,
		Quantity: qty,
		Time:     now,
		Maker: domain.Leg{
			OrderID:   rest.ID,
			Agent:     rest.Owner,
			Side:      rest.Side,
			Liquidity: domain.Maker,
			Fee:       b.fees.Fee(qty, rest.Price, domain.Maker),
			Remaining: rest.Quantity,
		},
		Taker: domain.Leg{
			OrderID:   in.ID,
			Agent:     in.Owner,
			Side:      in.Side,
			Liquidity: domain.Taker,
			Fee:       b.fees.Fee(qty, rest.Price, domain.Taker),
			Remaining: in.Quantity,
		},
		MakerQueuePos: pos,
	}
	b.FeeRevenue += exec.Maker.Fee + exec.Taker.Fee
	b.lastTradePrice = exec.Price
	b.lastTradeTime = now
	b.hasTraded = true
	b.history = append(b.history, Entry{Time: now, Execution: &exec})
	return exec
}

// insert places a resting order at the back of its price level
func (b *Book) insert(o *domain.Order) {
	ladder := b.ladder(o.Side)
	level, ok := ladder.Get(&PriceLevel{Price: o.Price})
	if !ok {
		level = newPriceLevel(o.Price)
		ladder.ReplaceOrInsert(level)
	}
	elem := level.Orders.PushBack(o)
	level.Volume += o.Quantity
	b.orders[o.ID] = &resting{order: o, level: level, elem: elem}
}

func (b *Book) remove(r *resting) {
	r.level.Orders.Remove(r.elem)
	r.level.Volume -= r.order.Quantity
	if r.level.Orders.Len() == 0 {
		b.ladder(r.order.Side).Delete(r.level)
	}
	delete(b.orders, r.order.ID)
}

func (b *Book) snapshot(now domain.SimTime) {
	s := b.L2(b.SnapshotDepth)
	s.Time = now
	b.history = append(b.history, Entry{Time: now, Snapshot: &s})
}

// L1 returns the current best bid and offer
func (b *Book) L1() domain.L1 {
	q := domain.L1{Symbol: b.Symbol}
	if level, ok := b.bids.Min(); ok {
		q.BidPrice, q.BidQty, q.HasBid = level.Price, level.Volume, true
	}
	if level, ok := b.asks.Min(); ok {
		q.AskPrice, q.AskQty, q.HasAsk = level.Price, level.Volume, true
	}
	return q
}

// L2 returns aggregated levels, best first, truncated to depth.
// A depth of 0 or less returns every level
func (b *Book) L2(depth int) domain.L2 {
	return domain.L2{
		Symbol: b.Symbol,
		Bids:   levels(b.bids, depth),
		Asks:   levels(b.asks, depth),
	}
}

func levels(ladder *btree.BTreeG[*PriceLevel], depth int) []domain.Level {
	out := make([]domain.Level, 0, min(ladder.Len(), max(depth, 0)))
	ladder.Ascend(func(level *PriceLevel) bool {
		out = append(out, domain.Level{Price: level.Price, Quantity: level.Volume})
		return depth <= 0 || len(out) < depth
	})
	return out
}

// Imbalance returns (bidQty - askQty) / (bidQty + askQty) at the top of the
// book, in [-1, 1]. An empty book has zero imbalance
func (b *Book) Imbalance() float64 {
	q := b.L1()
	total := q.BidQty + q.AskQty
	if total == 0 {
		return 0
	}
	return (float64(q.BidQty) - float64(q.AskQty)) / float64(total)
}

// LastTrade returns the price and time of the most recent execution
func (b *Book) LastTrade() (int64, domain.SimTime, bool) {
	return b.lastTradePrice, b.lastTradeTime, b.hasTraded
}

// History returns the append-only log of executions and snapshots
func (b *Book) History() []Entry {
	return b.history
}

// Order returns a copy of a resting order
func (b *Book) Order(id domain.OrderID) (domain.Order, bool) {
	r, ok := b.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *r.order, true
}

// QueuePosition returns the position (1-based) of an order at its price level
// Returns 0 if the order is not found on the book
func (b *Book) QueuePosition(id domain.OrderID) int {
	r, ok := b.orders[id]
	if !ok {
		return 0
	}
	pos := 1
	for e := r.level.Orders.Front(); e != r.elem; e = e.Next() {
		pos++
	}
	return pos
}

// Depth returns the number of price levels on each side
func (b *Book) Depth() (bidLevels, askLevels int) {
	return b.bids.Len(), b.asks.Len()
}

// TotalVolume returns total resting volume on each side
func (b *Book) TotalVolume() (bidVol, askVol uint64) {
	b.bids.Ascend(func(l *PriceLevel) bool { bidVol += l.Volume; return true })
	b.asks.Ascend(func(l *PriceLevel) bool { askVol += l.Volume; return true })
	return
}

// AssertInvariants checks all book invariants. Panics on violation
func (b *Book) AssertInvariants() {
	// 1. No crossed book
	bid, hasBid := b.bids.Min()
	ask, hasAsk := b.asks.Min()
	if hasBid && hasAsk && bid.Price >= ask.Price {
		panic(fmt.Sprintf("crossed book: best bid %d >= best ask %d", bid.Price, ask.Price))
	}

	count := 0
	check := func(side domain.Side) func(*PriceLevel) bool {
		return func(level *PriceLevel) bool {
			// 2. No empty levels
			if level.Orders.Len() == 0 {
				panic(fmt.Sprintf("empty %s level at price %d", side, level.Price))
			}
			var vol uint64
			var last domain.SimTime
			for e := level.Orders.Front(); e != nil; e = e.Next() {
				o := e.Value.(*domain.Order)
				// 3. Level membership and live quantity
				if o.Price != level.Price || o.Side != side {
					panic(fmt.Sprintf("order %d (%s @ %d) in %s level %d", o.ID, o.Side, o.Price, side, level.Price))
				}
				if o.Quantity == 0 {
					panic(fmt.Sprintf("zero remaining qty order %d still on book", o.ID))
				}
				// 4. FIFO by placement time
				if o.TimePlaced < last {
					panic(fmt.Sprintf("order %d placed at %d behind later order at %d", o.ID, o.TimePlaced, last))
				}
				last = o.TimePlaced
				vol += o.Quantity
				count++
			}
			// 5. Cached level volume
			if vol != level.Volume {
				panic(fmt.Sprintf("%s level %d volume %d != sum %d", side, level.Price, level.Volume, vol))
			}
			return true
		}
	}
	b.bids.Ascend(check(domain.Bid))
	b.asks.Ascend(check(domain.Ask))

	// 6. Order index consistency
	if count != len(b.orders) {
		panic(fmt.Sprintf("order index size %d != book order count %d", len(b.orders), count))
	}
}
