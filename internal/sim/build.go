package sim

import (
	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/config"
	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/exchange"
	"github.com/akshitanchan/marketsim/internal/fee"
	"github.com/akshitanchan/marketsim/internal/kernel"
	"github.com/akshitanchan/marketsim/internal/latency"
	"github.com/akshitanchan/marketsim/internal/oracle"
	"github.com/akshitanchan/marketsim/internal/trader"
)

// ErrUnknownKind is returned for a latency, oracle or agent kind the runner
// cannot build
var ErrUnknownKind = errors.New("unknown kind")

func rosterSize(cfg *config.Config) int {
	n := len(cfg.Venues)
	for _, g := range cfg.Agents {
		n += g.Count
	}
	return n
}

func buildLatency(cfg *config.Config, n int) (latency.Model, error) {
	l := cfg.Latency
	switch l.Kind {
	case config.LatencyFixed:
		return latency.Fixed(l.Base.SimTime()), nil
	case config.LatencyJitter:
		return latency.NewJitter(l.Base.SimTime(), l.Jitter.SimTime(), cfg.Seed), nil
	case config.LatencyRandomMatrix:
		return latency.NewRandomMatrix(n, l.Min.SimTime(), l.Max.SimTime(), cfg.Seed)
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "latency %q", l.Kind)
	}
}

func buildOracle(cfg *config.Config, start domain.SimTime) (oracle.Oracle, error) {
	o := cfg.Oracle
	switch o.Kind {
	case config.OracleConstant:
		return oracle.Constant(o.Price), nil
	case config.OracleSeries:
		points := make([]oracle.Point, len(o.Points))
		for i, p := range o.Points {
			points[i] = oracle.Point{Time: start + p.Time, Price: p.Price}
		}
		return oracle.NewSeries(points, o.Noise)
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "oracle %q", o.Kind)
	}
}

// buildVenues creates the exchanges with ids 0..len(venues)-1
func buildVenues(cfg *config.Config, start, stop domain.SimTime) ([]*exchange.Exchange, error) {
	out := make([]*exchange.Exchange, len(cfg.Venues))
	for i, v := range cfg.Venues {
		closeAt := stop
		if v.Close.Duration != 0 {
			closeAt = start + v.Close.SimTime()
		}
		x, err := exchange.New(domain.AgentID(i), exchange.Config{
			Name:          v.Name,
			Symbols:       v.Symbols,
			Fees:          v.Fees,
			Open:          start + v.Open.SimTime(),
			Close:         closeAt,
			SnapshotDepth: v.SnapshotDepth,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "venue %q", v.Name)
		}
		out[i] = x
	}
	return out, nil
}

// buildTraders creates the agent groups in order. Ids continue after the venues.
func buildTraders(cfg *config.Config, venues []*exchange.Exchange, o oracle.Oracle) ([]kernel.Agent, error) {
	ids := make([]domain.AgentID, len(venues))
	schedules := make([]fee.Schedule, len(venues))
	for i, x := range venues {
		ids[i] = x.ID()
		schedules[i] = x.Fees()
	}

	next := domain.AgentID(len(venues))
	var out []kernel.Agent
	for gi, g := range cfg.Agents {
		venue := domain.AgentID(cfg.VenueIndex(g.Venue))
		if venue < 0 {
			return nil, errors.Errorf("agents[%d]: unknown venue %q", gi, g.Venue)
		}
		for c := 0; c < g.Count; c++ {
			var a kernel.Agent
			switch g.Kind {
			case config.AgentNoise:
				a = trader.NewNoiseAgent(next, trader.NoiseConfig{
					Venue:     venue,
					Symbol:    g.Symbol,
					Interval:  g.Interval.SimTime(),
					MinSize:   g.MinSize,
					MaxSize:   g.MaxSize,
					Spread:    g.Spread,
					MarketPct: g.MarketPct,
					Cash:      g.Cash,
				}, o)
			case config.AgentRouter:
				r, err := trader.NewRouterAgent(next, trader.RouterConfig{
					Venues:   ids,
					Fees:     schedules,
					Symbol:   g.Symbol,
					Interval: g.Interval.SimTime(),
					MinSize:  g.MinSize,
					MaxSize:  g.MaxSize,
					Cash:     g.Cash,
				})
				if err != nil {
					return nil, errors.Wrapf(err, "agents[%d]", gi)
				}
				a = r
			case config.AgentTracker:
				a = trader.NewTrackerAgent(next, trader.TrackerConfig{
					Venue:     venue,
					Symbol:    g.Symbol,
					Interval:  g.Interval.SimTime(),
					Threshold: g.Threshold,
					Size:      g.MaxSize,
					Cash:      g.Cash,
				}, o)
			case config.AgentSeeder:
				a = trader.NewSeederAgent(next, trader.SeederConfig{
					Venue:      venue,
					Symbol:     g.Symbol,
					Levels:     g.Levels,
					Depth:      g.Depth,
					Tick:       g.Tick,
					HalfSpread: g.HalfSpread,
					MinSize:    g.MinSize,
					MaxSize:    g.MaxSize,
					Cash:       g.Cash,
				}, o)
			default:
				return nil, errors.Wrapf(ErrUnknownKind, "agent %q", g.Kind)
			}
			out = append(out, a)
			next++
		}
	}
	return out, nil
}
