// Package domain defines the core types shared across the simulation:
// simulated time, agent identity, orders, executions and book snapshots
package domain

import (
	"fmt"
	"math"
	"strings"
)

// --- Time ---

// SimTime is a count of nanoseconds since the simulation epoch
type SimTime int64

// Common durations expressed in SimTime units
const (
	Nanosecond  SimTime = 1
	Microsecond         = 1_000 * Nanosecond
	Millisecond         = 1_000 * Microsecond
	Second              = 1_000 * Millisecond
	Minute              = 60 * Second
	Hour                = 60 * Minute
)

// MsToNs converts milliseconds to SimTime
func MsToNs(ms int64) SimTime {
	return SimTime(ms) * Millisecond
}

// String renders the time as HH:MM:SS.nnnnnnnnn since epoch
func (t SimTime) String() string {
	neg := ""
	if t < 0 {
		neg = "-"
		t = -t
	}
	h := t / Hour
	m := (t % Hour) / Minute
	s := (t % Minute) / Second
	ns := t % Second
	return fmt.Sprintf("%s%02d:%02d:%02d.%09d", neg, h, m, s, ns)
}

// --- Identity ---

// AgentID identifies an agent. IDs are dense from 0 in roster order
type AgentID int

// NoAgent is used where an agent reference is absent
const NoAgent AgentID = -1

// OrderID identifies an order. Allocated by the kernel, unique and monotonic per run
type OrderID uint64

// --- Prices ---
// Prices are integer ticks (cents by default). $100.05 is stored as 10005

const TicksPerUnit = 100

// FormatPrice returns a human-readable price string
func FormatPrice(p int64) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/TicksPerUnit, p%TicksPerUnit)
}

// --- Enums ---

type Side int8

const (
	Bid Side = 1
	Ask Side = -1
)

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

func (s Side) Opposite() Side {
	return -s
}

// Valid reports whether s is one of Bid or Ask
func (s Side) Valid() bool {
	return s == Bid || s == Ask
}

// MarshalJSON serializes Side as a human-readable string
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON deserializes Side from a string or integer
func (s *Side) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	switch str {
	case "BID", "BUY", "1":
		*s = Bid
	case "ASK", "SELL", "-1":
		*s = Ask
	default:
		return fmt.Errorf("unknown Side: %s", str)
	}
	return nil
}

// Liquidity says whether an order leg provided or consumed liquidity
type Liquidity int8

const (
	Maker Liquidity = iota
	Taker
)

func (l Liquidity) String() string {
	if l == Taker {
		return "TAKER"
	}
	return "MAKER"
}

// MarshalJSON serializes Liquidity as a human-readable string
func (l Liquidity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON deserializes Liquidity from a string
func (l *Liquidity) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "MAKER":
		*l = Maker
	case "TAKER":
		*l = Taker
	default:
		return fmt.Errorf("unknown Liquidity: %s", data)
	}
	return nil
}

// --- Core structures ---

// Order is a limit or market instruction. Quantity is the remaining quantity
// and is mutated only by fills and cancels
type Order struct {
	ID         OrderID `json:"id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Price      int64   `json:"price"` // 0 for market orders
	Quantity   uint64  `json:"quantity"`
	Original   uint64  `json:"original"`
	Owner      AgentID `json:"owner"`
	TimePlaced SimTime `json:"time_placed"`
	IsMarket   bool    `json:"is_market,omitempty"`
}

// IsFilled returns true if no quantity remains
func (o *Order) IsFilled() bool {
	return o.Quantity == 0
}

// Filled returns the quantity executed so far
func (o *Order) Filled() uint64 {
	return o.Original - o.Quantity
}

// Clone returns a copy safe to hand to another agent
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

// Leg is one side of an execution
type Leg struct {
	OrderID   OrderID   `json:"order_id"`
	Agent     AgentID   `json:"agent"`
	Side      Side      `json:"side"`
	Liquidity Liquidity `json:"liquidity"`
	Fee       int64     `json:"fee"` // positive = charge, negative = rebate
	Remaining uint64    `json:"remaining"`
}

// Execution is a single match between a resting (maker) and incoming (taker) order
type Execution struct {
	ID       uint64  `json:"id"`
	Symbol   string  `json:"symbol"`
	Price    int64   `json:"price"`
	Quantity uint64  `json:"quantity"`
	Time     SimTime `json:"time"`
	Maker    Leg     `json:"maker"`
	Taker    Leg     `json:"taker"`
	// Queue position of the resting order at fill time, 1-based
	MakerQueuePos int `json:"maker_queue_pos"`
}

// NotionalFits reports whether price * quantity is representable in int64
// ticks. Books only admit orders for which it holds, so every execution's
// Notional is exact.
func NotionalFits(price int64, quantity uint64) bool {
	if quantity > math.MaxInt64 {
		return false
	}
	if price <= 0 || quantity == 0 {
		return true
	}
	return quantity <= uint64(math.MaxInt64/price)
}

// Notional returns price * quantity in ticks
func (e *Execution) Notional() int64 {
	return e.Price * int64(e.Quantity)
}

// LegFor returns the leg belonging to the given order, if any
func (e *Execution) LegFor(id OrderID) (Leg, bool) {
	switch id {
	case e.Maker.OrderID:
		return e.Maker, true
	case e.Taker.OrderID:
		return e.Taker, true
	}
	return Leg{}, false
}

// L1 is a best bid and offer snapshot
type L1 struct {
	Symbol   string  `json:"symbol"`
	Time     SimTime `json:"time"`
	BidPrice int64   `json:"bid_price"`
	BidQty   uint64  `json:"bid_qty"`
	AskPrice int64   `json:"ask_price"`
	AskQty   uint64  `json:"ask_qty"`
	HasBid   bool    `json:"has_bid"`
	HasAsk   bool    `json:"has_ask"`
}

// Mid returns the mid price, or false if either side is empty
func (q L1) Mid() (int64, bool) {
	if !q.HasBid || !q.HasAsk {
		return 0, false
	}
	return (q.BidPrice + q.AskPrice) / 2, true
}

// Spread returns ask - bid, or false if either side is empty
func (q L1) Spread() (int64, bool) {
	if !q.HasBid || !q.HasAsk {
		return 0, false
	}
	return q.AskPrice - q.BidPrice, true
}

// Level is an aggregated price level
type Level struct {
	Price    int64  `json:"price"`
	Quantity uint64 `json:"quantity"`
}

// L2 is a multi-level aggregated view, best level first on each side
type L2 struct {
	Symbol string  `json:"symbol"`
	Time   SimTime `json:"time"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

// Top returns the L1 view of an L2 snapshot
func (s L2) Top() L1 {
	q := L1{Symbol: s.Symbol, Time: s.Time}
	if len(s.Bids) > 0 {
		q.BidPrice, q.BidQty, q.HasBid = s.Bids[0].Price, s.Bids[0].Quantity, true
	}
	if len(s.Asks) > 0 {
		q.AskPrice, q.AskQty, q.HasAsk = s.Asks[0].Price, s.Asks[0].Quantity, true
	}
	return q
}
