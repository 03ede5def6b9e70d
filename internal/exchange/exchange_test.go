package exchange_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/exchange"
	"github.com/akshitanchan/marketsim/internal/fee"
	"github.com/akshitanchan/marketsim/internal/kernel"
	"github.com/akshitanchan/marketsim/internal/latency"
	"github.com/akshitanchan/marketsim/internal/message"
)

type step struct {
	at  domain.SimTime
	msg message.Message
}

type received struct {
	at  domain.SimTime
	msg message.Message
}

// client sends each step's message to venue 0 at the step's time and keeps
// everything it receives.
type client struct {
	id    domain.AgentID
	steps []step
	inbox []received
}

func (c *client) ID() domain.AgentID { return c.id }

func (c *client) OnStart(env kernel.Env, _ domain.SimTime) error {
	seen := map[domain.SimTime]bool{}
	for _, s := range c.steps {
		if seen[s.at] {
			continue
		}
		seen[s.at] = true
		if _, err := env.ScheduleWakeup(s.at); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) OnWakeup(env kernel.Env, now domain.SimTime) error {
	for _, s := range c.steps {
		if s.at == now {
			if err := env.Send(0, s.msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *client) OnMessage(_ kernel.Env, now domain.SimTime, _ domain.AgentID, msg message.Message) error {
	c.inbox = append(c.inbox, received{at: now, msg: msg})
	return nil
}

func (c *client) OnStop(kernel.Env) error { return nil }

func (c *client) kinds() []message.Kind {
	out := make([]message.Kind, len(c.inbox))
	for i, r := range c.inbox {
		out[i] = r.msg.Kind()
	}
	return out
}

func venueConfig() exchange.Config {
	return exchange.Config{
		Name:    "alpha",
		Symbols: []string{"ABM"},
		Fees:    fee.NewMakerTaker(decimal.RequireFromString("0.2"), decimal.RequireFromString("0.3")),
		Open:    0,
		Close:   1000,
	}
}

func limit(id domain.OrderID, side domain.Side, price int64, qty uint64) message.LimitOrder {
	return message.LimitOrder{Order: domain.Order{ID: id, Symbol: "ABM", Side: side, Price: price, Quantity: qty}}
}

func runVenue(t *testing.T, cfg exchange.Config, clients ...*client) (*exchange.Exchange, *eventlog.MemorySink) {
	t.Helper()
	x, err := exchange.New(0, cfg)
	require.NoError(t, err)
	agents := []kernel.Agent{x}
	for i, c := range clients {
		c.id = domain.AgentID(i + 1)
		agents = append(agents, c)
	}
	sink := &eventlog.MemorySink{}
	k, err := kernel.New(kernel.Config{Stop: 2000, Seed: 1, Latency: latency.Fixed(1), Sink: sink}, agents)
	require.NoError(t, err)
	require.NoError(t, k.Run(context.Background()))
	require.Empty(t, k.Faults())
	return x, sink
}

func TestCrossingOrdersNotifyBothLegs(t *testing.T) {
	seller := &client{steps: []step{{10, limit(1, domain.Ask, 100, 10)}}}
	buyer := &client{steps: []step{{20, limit(2, domain.Bid, 100, 4)}}}
	x, sink := runVenue(t, venueConfig(), seller, buyer)

	assert.Equal(t, []message.Kind{message.KindOrderAccepted, message.KindOrderExecuted}, seller.kinds())
	assert.Equal(t, []message.Kind{message.KindOrderAccepted, message.KindOrderExecuted}, buyer.kinds())

	makerFill := seller.inbox[1].msg.(message.OrderExecuted)
	assert.Equal(t, domain.SimTime(22), seller.inbox[1].at, "arrives at send time plus latency")
	assert.Equal(t, domain.Maker, makerFill.Leg().Liquidity)
	assert.Equal(t, int64(-1), makerFill.Leg().Fee, "rebate of 0.2 x 4 rounds to 1")
	assert.Equal(t, uint64(6), makerFill.Leg().Remaining)

	takerFill := buyer.inbox[1].msg.(message.OrderExecuted)
	assert.Equal(t, domain.Taker, takerFill.Leg().Liquidity)
	assert.Equal(t, int64(1), takerFill.Leg().Fee)
	assert.Equal(t, int64(100), takerFill.Execution.Price)

	assert.Len(t, sink.OfType(eventlog.TypeOrderSubmitted), 2)
	assert.Len(t, sink.OfType(eventlog.TypeOrderAccepted), 2)
	execs := sink.OfType(eventlog.TypeOrderExecuted)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.AgentID(0), execs[0].Agent)

	summary := sink.OfType(eventlog.TypeVenueSummary)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(0), summary[0].Values["fee_revenue"])
	assert.Equal(t, int64(4), summary[0].Values["volume"])
	assert.Equal(t, uint64(2), x.OrdersReceived)
}

func TestOwnerIsTheSender(t *testing.T) {
	o := limit(1, domain.Bid, 90, 5)
	o.Order.Owner = 42
	c := &client{steps: []step{{5, o}}}
	x, _ := runVenue(t, venueConfig(), c)

	resting, ok := x.Book("ABM").Order(1)
	require.True(t, ok)
	assert.Equal(t, domain.AgentID(1), resting.Owner)
}

func TestRejections(t *testing.T) {
	c := &client{steps: []step{
		{5, limit(1, domain.Bid, 0, 5)},
		{6, message.LimitOrder{Order: domain.Order{ID: 2, Symbol: "XYZ", Side: domain.Bid, Price: 10, Quantity: 1}}},
		{7, message.MarketOrder{Order: domain.Order{ID: 3, Symbol: "ABM", Side: domain.Bid, Quantity: 5}}},
	}}
	_, sink := runVenue(t, venueConfig(), c)

	var reasons []message.RejectReason
	for _, r := range c.inbox {
		reasons = append(reasons, r.msg.(message.OrderRejected).Reason)
	}
	assert.Equal(t, []message.RejectReason{
		message.RejectInvalidPrice,
		message.RejectUnknownSymbol,
		message.RejectInsufficientLiquidity,
	}, reasons)
	assert.Len(t, sink.OfType(eventlog.TypeOrderRejected), 3)
}

func TestMarketHours(t *testing.T) {
	cfg := venueConfig()
	cfg.Open, cfg.Close = 100, 500
	c := &client{steps: []step{
		{50, limit(1, domain.Bid, 90, 5)},
		{50, message.Subscribe{Symbol: "ABM", Feed: message.FeedL1}},
		{50, message.MarketHoursQuery{}},
		{200, limit(2, domain.Bid, 90, 5)},
		{600, limit(3, domain.Bid, 90, 5)},
	}}
	x, _ := runVenue(t, cfg, c)

	assert.Equal(t, []message.Kind{
		message.KindOrderRejected,
		message.KindL1Update,
		message.KindMarketHoursResponse,
		message.KindOrderAccepted,
		message.KindL1Update,
		message.KindMarketClosed,
		message.KindOrderRejected,
	}, c.kinds())
	assert.Equal(t, message.RejectMarketClosed, c.inbox[0].msg.(message.OrderRejected).Reason)
	assert.Equal(t, message.MarketHoursResponse{Open: 100, Close: 500}, c.inbox[2].msg)
	assert.Equal(t, domain.SimTime(502), c.inbox[5].at)
	assert.Equal(t, message.RejectMarketClosed, c.inbox[6].msg.(message.OrderRejected).Reason)
	assert.True(t, x.Closed())
}

func TestCancel(t *testing.T) {
	owner := &client{steps: []step{
		{10, limit(1, domain.Ask, 105, 3)},
		{30, message.CancelOrder{Symbol: "ABM", OrderID: 1}},
		{40, message.CancelOrder{Symbol: "ABM", OrderID: 1}},
	}}
	intruder := &client{steps: []step{{20, message.CancelOrder{Symbol: "ABM", OrderID: 1}}}}
	x, sink := runVenue(t, venueConfig(), owner, intruder)

	require.Len(t, intruder.inbox, 1)
	assert.Equal(t, message.RejectNotFound, intruder.inbox[0].msg.(message.CancelRejected).Reason)

	assert.Equal(t, []message.Kind{
		message.KindOrderAccepted,
		message.KindOrderCancelled,
		message.KindCancelRejected,
	}, owner.kinds())
	assert.Equal(t, uint64(3), owner.inbox[1].msg.(message.OrderCancelled).Order.Quantity)

	bidLevels, askLevels := x.Book("ABM").Depth()
	assert.Zero(t, bidLevels+askLevels)
	assert.Len(t, sink.OfType(eventlog.TypeOrderCancelled), 1)
	assert.Len(t, sink.OfType(eventlog.TypeCancelRejected), 2)
}

func TestSpreadQuery(t *testing.T) {
	c := &client{steps: []step{
		{10, limit(1, domain.Ask, 105, 3)},
		{10, limit(2, domain.Ask, 106, 2)},
		{10, limit(3, domain.Bid, 99, 7)},
		{20, message.MarketOrder{Order: domain.Order{ID: 4, Symbol: "ABM", Side: domain.Bid, Quantity: 1}}},
		{30, message.SpreadQuery{Symbol: "ABM", Depth: 1}},
		{30, message.SpreadQuery{Symbol: "ABM", Depth: 5}},
	}}
	runVenue(t, venueConfig(), c)

	var spreads []message.SpreadResponse
	for _, r := range c.inbox {
		if s, ok := r.msg.(message.SpreadResponse); ok {
			spreads = append(spreads, s)
		}
	}
	require.Len(t, spreads, 2)
	top := spreads[0]
	assert.Equal(t, []domain.Level{{Price: 99, Quantity: 7}}, top.Book.Bids)
	assert.Equal(t, []domain.Level{{Price: 105, Quantity: 2}}, top.Book.Asks)
	assert.True(t, top.HasLastTrade)
	assert.Equal(t, int64(105), top.LastTrade)
	assert.Equal(t, domain.SimTime(21), top.LastTradeTime)
	assert.Len(t, spreads[1].Book.Asks, 2)
}

func TestSubscriptionThrottle(t *testing.T) {
	watcher := &client{steps: []step{{1, message.Subscribe{Symbol: "ABM", Feed: message.FeedImbalance, MinInterval: 50}}}}
	trader := &client{steps: []step{
		{10, limit(1, domain.Bid, 99, 3)},
		{20, limit(2, domain.Bid, 98, 3)},
		{70, limit(3, domain.Ask, 101, 1)},
	}}
	runVenue(t, venueConfig(), watcher, trader)

	// Pushes at subscribe (2) and after the order at 71; the ones at 11 and
	// 21 fall inside the interval. The subscription outlives the close at
	// 1000, so the venue's MarketClosed arrives last.
	assert.Equal(t, []message.Kind{
		message.KindImbalanceUpdate,
		message.KindImbalanceUpdate,
		message.KindMarketClosed,
	}, watcher.kinds())
	require.Len(t, watcher.inbox, 3)
	first := watcher.inbox[0].msg.(message.ImbalanceUpdate)
	assert.Zero(t, first.Imbalance)
	last := watcher.inbox[1].msg.(message.ImbalanceUpdate)
	assert.Equal(t, domain.SimTime(71), last.Time)
	assert.InDelta(t, 0.5, last.Imbalance, 1e-9)
	closed := watcher.inbox[2].msg.(message.MarketClosed)
	assert.Equal(t, domain.SimTime(1001), closed.Time)
	assert.Equal(t, domain.SimTime(1002), watcher.inbox[2].at)
}

func TestUnsubscribe(t *testing.T) {
	watcher := &client{steps: []step{
		{1, message.Subscribe{Symbol: "ABM", Feed: message.FeedL2, Depth: 2}},
		{5, message.Unsubscribe{Symbol: "ABM", Feed: message.FeedL2}},
	}}
	trader := &client{steps: []step{{10, limit(1, domain.Bid, 99, 3)}}}
	runVenue(t, venueConfig(), watcher, trader)
	assert.Equal(t, []message.Kind{message.KindL2Update}, watcher.kinds())
}

func TestConfigValidate(t *testing.T) {
	cfg := venueConfig()
	cfg.Symbols = nil
	assert.ErrorIs(t, cfg.Validate(), exchange.ErrNoSymbols)

	cfg = venueConfig()
	cfg.Symbols = []string{"ABM", "ABM"}
	assert.ErrorIs(t, cfg.Validate(), exchange.ErrDuplicateSymbol)

	cfg = venueConfig()
	cfg.Open, cfg.Close = 10, 5
	assert.ErrorIs(t, cfg.Validate(), exchange.ErrBadHours)

	cfg = venueConfig()
	cfg.Fees = fee.NewPerContract(decimal.Zero)
	assert.ErrorIs(t, cfg.Validate(), fee.ErrInvalidSchedule)

	_, err := exchange.New(0, cfg)
	assert.Error(t, err)
}
