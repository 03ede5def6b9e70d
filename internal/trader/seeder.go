package trader

import (
	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/kernel"
	"github.com/akshitanchan/marketsim/internal/message"
	"github.com/akshitanchan/marketsim/internal/oracle"
)

// SeederConfig parameterises a SeederAgent
type SeederConfig struct {
	Venue      domain.AgentID
	Symbol     string
	Levels     int
	Depth      int // orders per level
	Tick       int64
	HalfSpread int64
	MinSize    uint64
	MaxSize    uint64
	Cash       int64
}

// SeederAgent populates a venue's book at start: Levels price levels on each
// side of the oracle price, Depth orders of random size per level. It then
// only tracks its fills.
type SeederAgent struct {
	base
	cfg    SeederConfig
	oracle oracle.Oracle
}

func NewSeederAgent(id domain.AgentID, cfg SeederConfig, o oracle.Oracle) *SeederAgent {
	if cfg.Tick <= 0 {
		cfg.Tick = 1
	}
	if cfg.Levels <= 0 {
		cfg.Levels = 1
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 1
	}
	return &SeederAgent{base: newBase(id, "seeder", cfg.Cash, cfg.Venue), cfg: cfg, oracle: o}
}

func (a *SeederAgent) OnStart(env kernel.Env, start domain.SimTime) error {
	a.start(env)
	mid := a.oracle.ObservePrice(a.cfg.Symbol, start, env.Rand())
	bestBid := mid - a.cfg.HalfSpread
	bestAsk := mid + a.cfg.HalfSpread
	if bestBid == bestAsk {
		bestAsk += a.cfg.Tick
	}

	for _, side := range []domain.Side{domain.Bid, domain.Ask} {
		for lvl := 0; lvl < a.cfg.Levels; lvl++ {
			price := bestBid - int64(lvl)*a.cfg.Tick
			if side == domain.Ask {
				price = bestAsk + int64(lvl)*a.cfg.Tick
			}
			if price <= 0 {
				break
			}
			for i := 0; i < a.cfg.Depth; i++ {
				qty := randomSize(env, a.cfg.MinSize, a.cfg.MaxSize)
				if _, err := a.Mgr.PlaceLimit(env, a.cfg.Venue, a.cfg.Symbol, side, price, qty); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (a *SeederAgent) OnWakeup(kernel.Env, domain.SimTime) error { return nil }

func (a *SeederAgent) OnMessage(_ kernel.Env, now domain.SimTime, from domain.AgentID, msg message.Message) error {
	a.receive(now, from, msg)
	return nil
}
