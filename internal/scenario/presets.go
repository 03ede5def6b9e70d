// Package scenario holds named run presets. Each preset is a complete
// config.Config that a TOML file could equally describe.
package scenario

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/akshitanchan/marketsim/internal/config"
	"github.com/akshitanchan/marketsim/internal/config/encoding"
	"github.com/akshitanchan/marketsim/internal/fee"
)

// ErrUnknown is returned for a preset name that does not exist
var ErrUnknown = errors.New("unknown scenario")

const symbol = "ABM"

func dur(d time.Duration) encoding.Duration {
	return encoding.Duration{Duration: d}
}

// Single is one maker/taker venue with a seeded book, noise traders and a
// fundamental tracker.
func Single(seed int64) *config.Config {
	c := config.NewDefaultConfig()
	c.Name = "single"
	c.Seed = seed
	c.Duration = dur(5 * time.Minute)
	c.Latency = config.Latency{
		Kind:   config.LatencyJitter,
		Base:   dur(500 * time.Microsecond),
		Jitter: dur(200 * time.Microsecond),
	}
	c.Oracle = config.Oracle{Kind: config.OracleConstant, Price: 10_000, Noise: 0}
	c.Venues = []config.Venue{{
		Name:    "lit",
		Symbols: []string{symbol},
		Fees:    fee.NewMakerTaker(decimal.RequireFromString("0.2"), decimal.RequireFromString("0.3")),
	}}
	c.Agents = []config.AgentGroup{
		{Kind: config.AgentSeeder, Count: 1, Symbol: symbol, MinSize: 10, MaxSize: 50, Levels: 5, Depth: 3, Tick: 1, HalfSpread: 1},
		{Kind: config.AgentNoise, Count: 20, Symbol: symbol, Interval: dur(5 * time.Second), MinSize: 1, MaxSize: 20, Spread: 5, MarketPct: 15},
		{Kind: config.AgentTracker, Count: 2, Symbol: symbol, Interval: dur(100 * time.Millisecond), Threshold: 3, MinSize: 5, MaxSize: 5},
	}
	return c
}

// Dual is a maker/taker venue and a tiered venue quoting the same symbol,
// with fee-aware routers choosing between them.
func Dual(seed int64) *config.Config {
	c := Single(seed)
	c.Name = "dual"
	c.Latency = config.Latency{
		Kind: config.LatencyRandomMatrix,
		Min:  dur(100 * time.Microsecond),
		Max:  dur(2 * time.Millisecond),
	}
	c.Venues = append(c.Venues, config.Venue{
		Name:    "tiered",
		Symbols: []string{symbol},
		Close:   dur(4 * time.Minute),
		Fees:    fee.DefaultTiered(),
	})
	c.Agents = []config.AgentGroup{
		{Kind: config.AgentSeeder, Count: 1, Venue: "lit", Symbol: symbol, MinSize: 10, MaxSize: 50, Levels: 5, Depth: 3, Tick: 1, HalfSpread: 1},
		{Kind: config.AgentSeeder, Count: 1, Venue: "tiered", Symbol: symbol, MinSize: 10, MaxSize: 50, Levels: 5, Depth: 3, Tick: 1, HalfSpread: 1},
		{Kind: config.AgentNoise, Count: 10, Venue: "lit", Symbol: symbol, Interval: dur(5 * time.Second), MinSize: 1, MaxSize: 20, Spread: 5, MarketPct: 15},
		{Kind: config.AgentNoise, Count: 10, Venue: "tiered", Symbol: symbol, Interval: dur(5 * time.Second), MinSize: 1, MaxSize: 20, Spread: 5, MarketPct: 15},
		{Kind: config.AgentRouter, Count: 5, Symbol: symbol, Interval: dur(3 * time.Second), MinSize: 1, MaxSize: 10},
	}
	return c
}

var presets = map[string]func(int64) *config.Config{
	"single": Single,
	"dual":   Dual,
}

// Get returns the named preset for seed
func Get(name string, seed int64) (*config.Config, error) {
	p, ok := presets[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "%q (have %v)", name, Names())
	}
	return p(seed), nil
}

// Names lists the presets, sorted
func Names() []string {
	out := make([]string, 0, len(presets))
	for n := range presets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
