// Package message defines the closed set of payloads exchanged between agents.
//
// Every payload implements Message. The interface is sealed by an unexported
// method so the set of variants is fixed by this package; consumers switch on
// the concrete type (or Kind) and treat anything else as unexpected.
package message

import (
	"github.com/akshitanchan/marketsim/internal/domain"
)

// Kind tags a payload variant
type Kind uint8

const (
	KindWakeup Kind = iota
	KindLimitOrder
	KindMarketOrder
	KindCancelOrder
	KindSpreadQuery
	KindSpreadResponse
	KindMarketHoursQuery
	KindMarketHoursResponse
	KindSubscribe
	KindUnsubscribe
	KindOrderAccepted
	KindOrderRejected
	KindOrderExecuted
	KindOrderCancelled
	KindCancelRejected
	KindL1Update
	KindL2Update
	KindImbalanceUpdate
	KindMarketClosed
)

var kindNames = [...]string{
	KindWakeup:              "WAKEUP",
	KindLimitOrder:          "LIMIT_ORDER",
	KindMarketOrder:         "MARKET_ORDER",
	KindCancelOrder:         "CANCEL_ORDER",
	KindSpreadQuery:         "QUERY_SPREAD",
	KindSpreadResponse:      "QUERY_SPREAD_RESPONSE",
	KindMarketHoursQuery:    "QUERY_MARKET_HOURS",
	KindMarketHoursResponse: "QUERY_MARKET_HOURS_RESPONSE",
	KindSubscribe:           "SUBSCRIBE",
	KindUnsubscribe:         "UNSUBSCRIBE",
	KindOrderAccepted:       "ORDER_ACCEPTED",
	KindOrderRejected:       "ORDER_REJECTED",
	KindOrderExecuted:       "ORDER_EXECUTED",
	KindOrderCancelled:      "ORDER_CANCELLED",
	KindCancelRejected:      "CANCEL_REJECTED",
	KindL1Update:            "MARKET_DATA_L1",
	KindL2Update:            "MARKET_DATA_L2",
	KindImbalanceUpdate:     "MARKET_DATA_IMBALANCE",
	KindMarketClosed:        "MARKET_CLOSED",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Message is a payload routed by the kernel. Messages are immutable once sent
type Message interface {
	Kind() Kind
	sealed()
}

// Feed selects a market data subscription stream
type Feed uint8

const (
	FeedL1 Feed = iota
	FeedL2
	FeedImbalance
)

func (f Feed) String() string {
	switch f {
	case FeedL1:
		return "L1"
	case FeedL2:
		return "L2"
	case FeedImbalance:
		return "IMBALANCE"
	default:
		return "UNKNOWN"
	}
}

// RejectReason explains why an order was not accepted
type RejectReason string

const (
	RejectInvalidQuantity       RejectReason = "INVALID_QUANTITY"
	RejectInvalidPrice          RejectReason = "INVALID_PRICE"
	RejectInvalidSide           RejectReason = "INVALID_SIDE"
	RejectUnknownSymbol         RejectReason = "UNKNOWN_SYMBOL"
	RejectDuplicateOrder        RejectReason = "DUPLICATE_ORDER"
	RejectInsufficientLiquidity RejectReason = "INSUFFICIENT_LIQUIDITY"
	RejectMarketClosed          RejectReason = "MARKET_CLOSED"
	RejectNotFound              RejectReason = "NOT_FOUND"
)

// --- kernel ---

// Wakeup is the reserved payload for self-addressed timer events
type Wakeup struct{}

// --- requests ---

// LimitOrder asks the exchange to match and possibly rest an order
type LimitOrder struct {
	Order domain.Order
}

// MarketOrder asks the exchange to match without a price limit
type MarketOrder struct {
	Order domain.Order
}

// CancelOrder asks the exchange to remove a resting order
type CancelOrder struct {
	Symbol  string
	OrderID domain.OrderID
}

// SpreadQuery asks for the current book to the given depth
type SpreadQuery struct {
	Symbol string
	Depth  int
}

// MarketHoursQuery asks for the venue's open and close times
type MarketHoursQuery struct{}

// Subscribe requests market data pushes. MinInterval throttles pushes; 0 pushes on every change
type Subscribe struct {
	Symbol      string
	Feed        Feed
	Depth       int
	MinInterval domain.SimTime
}

// Unsubscribe cancels a previous Subscribe for the same symbol and feed
type Unsubscribe struct {
	Symbol string
	Feed   Feed
}

// --- responses ---

// SpreadResponse answers SpreadQuery
type SpreadResponse struct {
	Book          domain.L2
	LastTrade     int64
	LastTradeTime domain.SimTime
	HasLastTrade  bool
	MarketClosed  bool
}

// MarketHoursResponse answers MarketHoursQuery
type MarketHoursResponse struct {
	Open  domain.SimTime
	Close domain.SimTime
}

// OrderAccepted confirms an order was admitted to the book (it may have traded)
type OrderAccepted struct {
	Order domain.Order
}

// OrderRejected reports an order that was not admitted, or a market order
// remainder that could not be filled
type OrderRejected struct {
	Order  domain.Order
	Reason RejectReason
}

// OrderExecuted reports a fill against one of the recipient's orders
type OrderExecuted struct {
	Execution domain.Execution
	OrderID   domain.OrderID
}

// Leg returns the recipient's leg of the execution
func (m OrderExecuted) Leg() domain.Leg {
	leg, _ := m.Execution.LegFor(m.OrderID)
	return leg
}

// OrderCancelled confirms a resting order was removed
type OrderCancelled struct {
	Order domain.Order
}

// CancelRejected reports a cancel for an order that is not resting
type CancelRejected struct {
	Symbol  string
	OrderID domain.OrderID
	Reason  RejectReason
}

// L1Update is a pushed best bid and offer
type L1Update struct {
	Quote domain.L1
}

// L2Update is a pushed depth snapshot
type L2Update struct {
	Book domain.L2
}

// ImbalanceUpdate is a pushed top-of-book imbalance in [-1, 1]
type ImbalanceUpdate struct {
	Symbol    string
	Time      domain.SimTime
	Imbalance float64
}

// MarketClosed is sent once to every subscriber when the venue closes
type MarketClosed struct {
	Time domain.SimTime
}

func (Wakeup) Kind() Kind              { return KindWakeup }
func (LimitOrder) Kind() Kind          { return KindLimitOrder }
func (MarketOrder) Kind() Kind         { return KindMarketOrder }
func (CancelOrder) Kind() Kind         { return KindCancelOrder }
func (SpreadQuery) Kind() Kind         { return KindSpreadQuery }
func (SpreadResponse) Kind() Kind      { return KindSpreadResponse }
func (MarketHoursQuery) Kind() Kind    { return KindMarketHoursQuery }
func (MarketHoursResponse) Kind() Kind { return KindMarketHoursResponse }
func (Subscribe) Kind() Kind           { return KindSubscribe }
func (Unsubscribe) Kind() Kind         { return KindUnsubscribe }
func (OrderAccepted) Kind() Kind       { return KindOrderAccepted }
func (OrderRejected) Kind() Kind       { return KindOrderRejected }
func (OrderExecuted) Kind() Kind       { return KindOrderExecuted }
func (OrderCancelled) Kind() Kind      { return KindOrderCancelled }
func (CancelRejected) Kind() Kind      { return KindCancelRejected }
func (L1Update) Kind() Kind            { return KindL1Update }
func (L2Update) Kind() Kind            { return KindL2Update }
func (ImbalanceUpdate) Kind() Kind     { return KindImbalanceUpdate }
func (MarketClosed) Kind() Kind        { return KindMarketClosed }

func (Wakeup) sealed()              {}
func (LimitOrder) sealed()          {}
func (MarketOrder) sealed()         {}
func (CancelOrder) sealed()         {}
func (SpreadQuery) sealed()         {}
func (SpreadResponse) sealed()      {}
func (MarketHoursQuery) sealed()    {}
func (MarketHoursResponse) sealed() {}
func (Subscribe) sealed()           {}
func (Unsubscribe) sealed()         {}
func (OrderAccepted) sealed()       {}
func (OrderRejected) sealed()       {}
func (OrderExecuted) sealed()       {}
func (OrderCancelled) sealed()      {}
func (CancelRejected) sealed()      {}
func (L1Update) sealed()            {}
func (L2Update) sealed()            {}
func (ImbalanceUpdate) sealed()     {}
func (MarketClosed) sealed()        {}

// IsMarketData reports whether the message is a subscription push
func IsMarketData(m Message) bool {
	switch m.Kind() {
	case KindL1Update, KindL2Update, KindImbalanceUpdate, KindMarketClosed:
		return true
	}
	return false
}
