// Package config is the run configuration: a TOML document describing the
// venues, latency, oracle and agent population of one simulation.
package config

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/akshitanchan/marketsim/internal/config/encoding"
	"github.com/akshitanchan/marketsim/internal/fee"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/oracle"
)

// ErrInvalid is wrapped by every validation failure, with the offending field path
var ErrInvalid = errors.New("invalid configuration")

// Latency kinds
const (
	LatencyFixed        = "fixed"
	LatencyJitter       = "jitter"
	LatencyRandomMatrix = "random_matrix"
)

// Oracle kinds
const (
	OracleConstant = "constant"
	OracleSeries   = "series"
)

// Agent kinds
const (
	AgentNoise   = "noise"
	AgentRouter  = "router"
	AgentTracker = "tracker"
	AgentSeeder  = "seeder"
)

// Config is the whole run description
type Config struct {
	Name string `toml:"name"`
	Seed int64  `toml:"seed"`
	// Start is the simulated wall clock at which the run begins, as an
	// offset from midnight
	Start    encoding.Duration `toml:"start"`
	Duration encoding.Duration `toml:"duration"`
	// ComputationDelay is every agent's initial outbound delay
	ComputationDelay encoding.Duration `toml:"computation_delay"`

	Latency Latency      `toml:"latency"`
	Oracle  Oracle       `toml:"oracle"`
	Venues  []Venue      `toml:"venues"`
	Agents  []AgentGroup `toml:"agents"`
	Logging Logging      `toml:"logging"`
	Output  Output       `toml:"output"`
	Metrics Metrics      `toml:"metrics"`
	Stream  Stream       `toml:"stream"`
}

// Latency selects the link delay model
type Latency struct {
	Kind   string            `toml:"kind"`
	Base   encoding.Duration `toml:"base"`
	Jitter encoding.Duration `toml:"jitter"`
	Min    encoding.Duration `toml:"min"`
	Max    encoding.Duration `toml:"max"`
}

// Oracle selects the reference price source. Series point times are
// offsets from the run start.
type Oracle struct {
	Kind   string         `toml:"kind"`
	Price  int64          `toml:"price"`
	Points []oracle.Point `toml:"points"`
	Noise  int64          `toml:"noise"`
}

// Venue is one exchange. Open and Close are offsets from the run start;
// a zero Close means the venue stays open for the whole run.
type Venue struct {
	Name          string            `toml:"name"`
	Symbols       []string          `toml:"symbols"`
	Open          encoding.Duration `toml:"open"`
	Close         encoding.Duration `toml:"close"`
	SnapshotDepth int               `toml:"snapshot_depth"`
	Fees          fee.Schedule      `toml:"fees"`
}

// AgentGroup is Count identical agents of one kind
type AgentGroup struct {
	Kind  string `toml:"kind"`
	Count int    `toml:"count"`
	// Venue names the venue the agents trade on. Empty means the first
	// venue. Routers always see every venue.
	Venue    string            `toml:"venue"`
	Symbol   string            `toml:"symbol"`
	Interval encoding.Duration `toml:"interval"`
	MinSize  uint64            `toml:"min_size"`
	MaxSize  uint64            `toml:"max_size"`
	Cash     int64             `toml:"cash"`

	// noise
	Spread    int64 `toml:"spread"`
	MarketPct int   `toml:"market_pct"`
	// tracker
	Threshold int64 `toml:"threshold"`
	// seeder
	Levels     int   `toml:"levels"`
	Depth      int   `toml:"depth"`
	Tick       int64 `toml:"tick"`
	HalfSpread int64 `toml:"half_spread"`
}

// Logging configures the run logger
type Logging struct {
	Environment string            `toml:"environment"`
	Level       encoding.LogLevel `toml:"level"`
}

// Output configures where the record log goes. An empty Dir disables it
type Output struct {
	Dir      string `toml:"dir"`
	Compress bool   `toml:"compress"`
}

// Metrics configures the prometheus endpoint. An empty Addr disables it
type Metrics struct {
	Addr string `toml:"addr"`
}

// Stream configures the live websocket record stream. An empty Addr disables it
type Stream struct {
	Addr string `toml:"addr"`
}

// NewDefaultConfig is a one-venue run with a small noise population
func NewDefaultConfig() *Config {
	return &Config{
		Name:     "default",
		Seed:     1,
		Start:    encoding.Duration{Duration: 9*time.Hour + 30*time.Minute},
		Duration: encoding.Duration{Duration: time.Minute},
		Latency: Latency{
			Kind: LatencyFixed,
			Base: encoding.Duration{Duration: time.Millisecond},
		},
		Oracle: Oracle{Kind: OracleConstant, Price: 10_000},
		Venues: []Venue{{
			Name:    "alpha",
			Symbols: []string{"ABM"},
			Fees:    fee.NewMakerTaker(decimal.RequireFromString("0.2"), decimal.RequireFromString("0.3")),
		}},
		Agents: []AgentGroup{
			{Kind: AgentSeeder, Count: 1, Symbol: "ABM", MinSize: 10, MaxSize: 50, Levels: 5, Depth: 2, Tick: 1, HalfSpread: 2},
			{Kind: AgentNoise, Count: 10, Symbol: "ABM", Interval: encoding.Duration{Duration: 2 * time.Second}, MinSize: 1, MaxSize: 20, Spread: 10, MarketPct: 10},
		},
		Logging: Logging{
			Environment: logging.NewDefaultConfig().Environment,
			Level:       encoding.LogLevel{Level: logging.InfoLevel},
		},
		Output: Output{Dir: "runs"},
	}
}

// Load decodes a TOML file over the defaults and validates the result.
// Unknown keys are an error.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	// Lists replace rather than merge.
	c.Venues, c.Agents = nil, nil
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Wrapf(ErrInvalid, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode writes c as TOML
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func invalid(field, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, field+": "+format, args...)
}

// Validate reports the first offending field
func (c *Config) Validate() error {
	if c.Duration.Duration <= 0 {
		return invalid("duration", "must be positive")
	}
	if c.Start.Duration < 0 {
		return invalid("start", "must not be negative")
	}
	if c.ComputationDelay.Duration < 0 {
		return invalid("computation_delay", "must not be negative")
	}

	switch c.Latency.Kind {
	case LatencyFixed:
		if c.Latency.Base.Duration < 0 {
			return invalid("latency.base", "must not be negative")
		}
	case LatencyJitter:
		if c.Latency.Base.Duration < 0 || c.Latency.Jitter.Duration < 0 {
			return invalid("latency", "base and jitter must not be negative")
		}
	case LatencyRandomMatrix:
		if c.Latency.Min.Duration < 0 || c.Latency.Max.Duration < c.Latency.Min.Duration {
			return invalid("latency", "need 0 <= min <= max")
		}
	default:
		return invalid("latency.kind", "unknown kind %q", c.Latency.Kind)
	}

	switch c.Oracle.Kind {
	case OracleConstant:
		if c.Oracle.Price <= 0 {
			return invalid("oracle.price", "must be positive")
		}
	case OracleSeries:
		if len(c.Oracle.Points) == 0 {
			return invalid("oracle.points", "series needs at least one point")
		}
	default:
		return invalid("oracle.kind", "unknown kind %q", c.Oracle.Kind)
	}

	if len(c.Venues) == 0 {
		return invalid("venues", "at least one venue is required")
	}
	names := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		field := "venues[" + strconv.Itoa(i) + "]"
		if v.Name == "" {
			return invalid(field+".name", "must be set")
		}
		if names[v.Name] {
			return invalid(field+".name", "duplicate venue %q", v.Name)
		}
		names[v.Name] = true
		if len(v.Symbols) == 0 {
			return invalid(field+".symbols", "must list at least one symbol")
		}
		if v.Open.Duration < 0 || (v.Close.Duration != 0 && v.Close.Duration < v.Open.Duration) {
			return invalid(field, "need 0 <= open <= close")
		}
		if err := v.Fees.Validate(); err != nil {
			return errors.Wrap(err, field+".fees")
		}
	}

	for i, g := range c.Agents {
		field := "agents[" + strconv.Itoa(i) + "]"
		switch g.Kind {
		case AgentNoise, AgentRouter, AgentTracker, AgentSeeder:
		default:
			return invalid(field+".kind", "unknown kind %q", g.Kind)
		}
		if g.Count < 0 {
			return invalid(field+".count", "must not be negative")
		}
		if g.Symbol == "" {
			return invalid(field+".symbol", "must be set")
		}
		if g.Venue != "" && !names[g.Venue] {
			return invalid(field+".venue", "unknown venue %q", g.Venue)
		}
		if g.MaxSize < g.MinSize {
			return invalid(field, "max_size below min_size")
		}
		if g.Interval.Duration < 0 {
			return invalid(field+".interval", "must not be negative")
		}
	}
	return nil
}

// VenueIndex returns the position of the named venue, with "" meaning the first
func (c *Config) VenueIndex(name string) int {
	if name == "" {
		return 0
	}
	for i, v := range c.Venues {
		if v.Name == name {
			return i
		}
	}
	return -1
}
