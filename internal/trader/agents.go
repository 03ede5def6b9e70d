package trader

import (
	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/fee"
	"github.com/akshitanchan/marketsim/internal/kernel"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/message"
	"github.com/akshitanchan/marketsim/internal/oracle"
)

// DefaultTrackerInterval is how often a TrackerAgent samples its oracle
const DefaultTrackerInterval = 100 * domain.Millisecond

// base carries what every reference agent shares
type base struct {
	id     domain.AgentID
	Mgr    *OrderManager
	FSM    *Machine
	log    *logging.Logger
	kind   string
	venues []domain.AgentID
}

func newBase(id domain.AgentID, kind string, cash int64, venues ...domain.AgentID) base {
	return base{
		id:     id,
		kind:   kind,
		Mgr:    NewOrderManager(cash),
		FSM:    NewMachine(),
		log:    logging.NewNopLogger(),
		venues: venues,
	}
}

func (b *base) ID() domain.AgentID { return b.id }

func (b *base) start(env kernel.Env) {
	b.log = env.Logger().Named(b.kind)
}

// receive feeds msg to the order manager and checks it against the state
// machine. It reports whether the caller should act on msg. Stray messages
// are dropped rather than treated as faults.
func (b *base) receive(now domain.SimTime, from domain.AgentID, msg message.Message) bool {
	if err := b.FSM.Accept(msg.Kind()); err != nil {
		b.log.Debug("dropping message", logging.AgentID(from), logging.Error(err))
		return false
	}
	b.Mgr.Handle(now, from, msg)
	if _, closed := msg.(message.MarketClosed); closed {
		if b.allClosed() {
			b.log.Debug("every venue closed, going inactive", logging.AgentID(from))
			_ = b.FSM.To(Inactive)
		} else {
			b.log.Debug("venue closed", logging.AgentID(from))
		}
		return false
	}
	return true
}

// closed reports whether venue is known to have closed
func (b *base) closed(venue domain.AgentID) bool {
	q, ok := b.Mgr.Quotes[venue]
	return ok && q.MarketClosed
}

func (b *base) allClosed() bool {
	for _, v := range b.venues {
		if !b.closed(v) {
			return false
		}
	}
	return true
}

func (b *base) OnStop(env kernel.Env) error {
	env.Record(&eventlog.Record{Type: eventlog.TypeAgentSummary, Values: b.Mgr.Summary()})
	return nil
}

func randomSide(env kernel.Env) domain.Side {
	if env.Rand().Intn(2) == 0 {
		return domain.Bid
	}
	return domain.Ask
}

func randomSize(env kernel.Env, lo, hi uint64) uint64 {
	if hi <= lo {
		return max(lo, 1)
	}
	return lo + uint64(env.Rand().Int63n(int64(hi-lo+1)))
}

// --- noise ---

// NoiseConfig parameterises a NoiseAgent
type NoiseConfig struct {
	Venue    domain.AgentID
	Symbol   string
	Interval domain.SimTime
	MinSize  uint64
	MaxSize  uint64
	// Spread is the largest distance, in ticks, of a limit price from the
	// reference price
	Spread int64
	// MarketPct is the percentage of orders sent as market orders
	MarketPct int
	Cash      int64
}

// NoiseAgent wakes at jittered intervals, queries the book, cancels what it
// has resting and places one random order around the mid (or the oracle
// price when the book is one-sided).
type NoiseAgent struct {
	base
	cfg    NoiseConfig
	oracle oracle.Oracle
}

func NewNoiseAgent(id domain.AgentID, cfg NoiseConfig, o oracle.Oracle) *NoiseAgent {
	if cfg.Interval <= 0 {
		cfg.Interval = domain.Second
	}
	return &NoiseAgent{base: newBase(id, "noise", cfg.Cash, cfg.Venue), cfg: cfg, oracle: o}
}

func (a *NoiseAgent) OnStart(env kernel.Env, start domain.SimTime) error {
	a.start(env)
	return a.sleep(env, start)
}

func (a *NoiseAgent) sleep(env kernel.Env, now domain.SimTime) error {
	delay := a.cfg.Interval/2 + domain.SimTime(env.Rand().Int63n(int64(a.cfg.Interval)))
	_, err := env.ScheduleWakeup(now + delay)
	return err
}

func (a *NoiseAgent) OnWakeup(env kernel.Env, _ domain.SimTime) error {
	if a.FSM.State() != AwaitingWakeup {
		return nil
	}
	if err := a.Mgr.QuerySpread(env, a.cfg.Venue, a.cfg.Symbol, 1); err != nil {
		return err
	}
	return a.FSM.To(AwaitingSpread)
}

func (a *NoiseAgent) OnMessage(env kernel.Env, now domain.SimTime, from domain.AgentID, msg message.Message) error {
	if !a.receive(now, from, msg) {
		return nil
	}
	if _, ok := msg.(message.SpreadResponse); !ok {
		return nil
	}
	if err := a.trade(env, now); err != nil {
		return err
	}
	if err := a.FSM.To(AwaitingWakeup); err != nil {
		return err
	}
	return a.sleep(env, now)
}

func (a *NoiseAgent) trade(env kernel.Env, now domain.SimTime) error {
	if err := a.Mgr.CancelAll(env); err != nil {
		return err
	}
	side := randomSide(env)
	qty := randomSize(env, a.cfg.MinSize, a.cfg.MaxSize)
	if env.Rand().Intn(100) < a.cfg.MarketPct {
		_, err := a.Mgr.PlaceMarket(env, a.cfg.Venue, a.cfg.Symbol, side, qty)
		return err
	}

	ref, ok := a.Mgr.quote(a.cfg.Venue).Top.Mid()
	if !ok {
		ref = a.oracle.ObservePrice(a.cfg.Symbol, now, env.Rand())
	}
	// Bids land at or below the reference and asks at or above it, so most
	// orders rest and some cross.
	spread := max(a.cfg.Spread, 0)
	offset := env.Rand().Int63n(spread+1) - spread/4
	price := ref - int64(side)*offset
	if price <= 0 {
		price = 1
	}
	_, err := a.Mgr.PlaceLimit(env, a.cfg.Venue, a.cfg.Symbol, side, price, qty)
	return err
}

// --- router ---

// RouterConfig parameterises a RouterAgent
type RouterConfig struct {
	Venues   []domain.AgentID
	Fees     []fee.Schedule // published schedule of each venue, same order
	Symbol   string
	Interval domain.SimTime
	MinSize  uint64
	MaxSize  uint64
	Cash     int64
}

// RouterAgent queries every venue, prices a marketable order at each one net
// of its published fees and sends it where the net cost is best.
type RouterAgent struct {
	base
	cfg     RouterConfig
	pending map[domain.AgentID]bool
	side    domain.Side
	qty     uint64

	// Routed counts orders sent to each venue
	Routed map[domain.AgentID]int
}

func NewRouterAgent(id domain.AgentID, cfg RouterConfig) (*RouterAgent, error) {
	if len(cfg.Venues) == 0 {
		return nil, fee.ErrNoVenues
	}
	if len(cfg.Fees) != len(cfg.Venues) {
		return nil, errors.Errorf("router has %d venues but %d fee schedules", len(cfg.Venues), len(cfg.Fees))
	}
	if cfg.Interval <= 0 {
		cfg.Interval = domain.Second
	}
	return &RouterAgent{
		base:    newBase(id, "router", cfg.Cash, cfg.Venues...),
		cfg:     cfg,
		pending: make(map[domain.AgentID]bool),
		Routed:  make(map[domain.AgentID]int),
	}, nil
}

func (a *RouterAgent) OnStart(env kernel.Env, start domain.SimTime) error {
	a.start(env)
	_, err := env.ScheduleWakeup(start + domain.SimTime(env.Rand().Int63n(int64(a.cfg.Interval))))
	return err
}

func (a *RouterAgent) OnWakeup(env kernel.Env, _ domain.SimTime) error {
	if a.FSM.State() != AwaitingWakeup {
		return nil
	}
	if err := a.Mgr.CancelAll(env); err != nil {
		return err
	}
	if a.allClosed() {
		return a.FSM.To(Inactive)
	}
	a.side = randomSide(env)
	a.qty = randomSize(env, a.cfg.MinSize, a.cfg.MaxSize)
	for _, v := range a.cfg.Venues {
		if a.closed(v) {
			continue
		}
		a.pending[v] = true
		if err := a.Mgr.QuerySpread(env, v, a.cfg.Symbol, 1); err != nil {
			return err
		}
	}
	return a.FSM.To(AwaitingSpread)
}

func (a *RouterAgent) OnMessage(env kernel.Env, now domain.SimTime, from domain.AgentID, msg message.Message) error {
	if !a.receive(now, from, msg) {
		return nil
	}
	if _, ok := msg.(message.SpreadResponse); !ok {
		return nil
	}
	delete(a.pending, from)
	if len(a.pending) > 0 {
		return nil
	}
	if err := a.route(env); err != nil {
		return err
	}
	if err := a.FSM.To(AwaitingWakeup); err != nil {
		return err
	}
	_, err := env.ScheduleWakeup(now + a.cfg.Interval)
	return err
}

// Quotes prices the pending order at every open venue from the last
// spreads. Closed venues are left out.
func (a *RouterAgent) Quotes() []fee.VenueQuote {
	quotes := make([]fee.VenueQuote, 0, len(a.cfg.Venues))
	for i, v := range a.cfg.Venues {
		if a.closed(v) {
			continue
		}
		quotes = append(quotes, fee.VenueQuote{Venue: v, Quantity: a.qty})
		q, ok := a.Mgr.Quotes[v]
		if !ok {
			continue
		}
		price, has := q.Top.AskPrice, q.Top.HasAsk
		if a.side == domain.Ask {
			price, has = q.Top.BidPrice, q.Top.HasBid
		}
		if !has {
			continue
		}
		liq := fee.Classify(price, q.Top, a.side)
		last := &quotes[len(quotes)-1]
		last.Price = price
		last.Fee = a.cfg.Fees[i].Fee(a.qty, price, liq)
		last.Quoted = true
	}
	return quotes
}

func (a *RouterAgent) route(env kernel.Env) error {
	quotes := a.Quotes()
	if len(quotes) == 0 {
		return nil
	}
	venue, err := fee.ChooseVenue(quotes, a.side, env.Rand())
	if err != nil {
		return err
	}
	a.Routed[venue]++
	for _, q := range quotes {
		if q.Venue != venue {
			continue
		}
		if !q.Quoted {
			// Nothing to lean on at this venue: cross with a market order.
			_, err = a.Mgr.PlaceMarket(env, venue, a.cfg.Symbol, a.side, a.qty)
			return err
		}
		_, err = a.Mgr.PlaceLimit(env, venue, a.cfg.Symbol, a.side, q.Price, a.qty)
		return err
	}
	return nil
}

// --- tracker ---

// TrackerConfig parameterises a TrackerAgent
type TrackerConfig struct {
	Venue    domain.AgentID
	Symbol   string
	Interval domain.SimTime
	// Threshold is how far, in ticks, the mid may sit from the oracle price
	// before the agent trades toward it
	Threshold int64
	Size      uint64
	Cash      int64
}

// TrackerAgent subscribes to a venue's L1 feed, samples the oracle on a
// fixed interval and leans a limit order toward the oracle price whenever
// the mid drifts past the threshold.
type TrackerAgent struct {
	base
	cfg    TrackerConfig
	oracle oracle.Oracle
}

func NewTrackerAgent(id domain.AgentID, cfg TrackerConfig, o oracle.Oracle) *TrackerAgent {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTrackerInterval
	}
	if cfg.Size == 0 {
		cfg.Size = 1
	}
	return &TrackerAgent{base: newBase(id, "tracker", cfg.Cash, cfg.Venue), cfg: cfg, oracle: o}
}

func (a *TrackerAgent) OnStart(env kernel.Env, _ domain.SimTime) error {
	a.start(env)
	if err := a.Mgr.Subscribe(env, a.cfg.Venue, a.cfg.Symbol, message.FeedL1, 1, 0); err != nil {
		return err
	}
	return a.FSM.To(AwaitingMarketData)
}

func (a *TrackerAgent) OnMessage(env kernel.Env, now domain.SimTime, from domain.AgentID, msg message.Message) error {
	if !a.receive(now, from, msg) {
		return nil
	}
	if _, ok := msg.(message.L1Update); !ok || a.FSM.State() != AwaitingMarketData {
		return nil
	}
	// First quote in hand: start sampling.
	if err := a.FSM.To(AwaitingWakeup); err != nil {
		return err
	}
	_, err := env.ScheduleWakeup(now + a.cfg.Interval)
	return err
}

func (a *TrackerAgent) OnWakeup(env kernel.Env, now domain.SimTime) error {
	if a.FSM.State() != AwaitingWakeup {
		return nil
	}
	price := a.oracle.ObservePrice(a.cfg.Symbol, now, env.Rand())
	env.Record(&eventlog.Record{Type: eventlog.TypeOracleSample, Symbol: a.cfg.Symbol, Values: map[string]int64{"price": price}})

	if mid, ok := a.Mgr.quote(a.cfg.Venue).Top.Mid(); ok {
		var side domain.Side
		switch {
		case price-mid > a.cfg.Threshold:
			side = domain.Bid
		case mid-price > a.cfg.Threshold:
			side = domain.Ask
		}
		if side != 0 {
			if err := a.Mgr.CancelAll(env); err != nil {
				return err
			}
			if _, err := a.Mgr.PlaceLimit(env, a.cfg.Venue, a.cfg.Symbol, side, price, a.cfg.Size); err != nil {
				return err
			}
		}
	}
	_, err := env.ScheduleWakeup(now + a.cfg.Interval)
	return err
}
