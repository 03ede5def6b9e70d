package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akshitanchan/marketsim/internal/config"
	"github.com/akshitanchan/marketsim/internal/config/encoding"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/kernel"
	"github.com/akshitanchan/marketsim/internal/metrics"
	"github.com/akshitanchan/marketsim/internal/scenario"
)

func shortPreset(t *testing.T, name string, seed int64, dir string) *config.Config {
	t.Helper()
	cfg, err := scenario.Get(name, seed)
	require.NoError(t, err)
	cfg.Duration = encoding.Duration{Duration: time.Minute}
	for i := range cfg.Venues {
		cfg.Venues[i].Close = encoding.Duration{}
	}
	cfg.Output.Dir = dir
	return cfg
}

func run(t *testing.T, cfg *config.Config, opts Options) (*Runner, *RunResult) {
	t.Helper()
	r, err := NewRunner(cfg, opts)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	return r, res
}

// Same seed and config must produce byte-identical logs and the same
// dispatch trace.
func TestDeterminism(t *testing.T) {
	for _, name := range scenario.Names() {
		t.Run(name, func(t *testing.T) {
			_, a := run(t, shortPreset(t, name, 12345, t.TempDir()), Options{})
			_, b := run(t, shortPreset(t, name, 12345, t.TempDir()), Options{})

			assert.Equal(t, a.EventCount, b.EventCount)
			assert.Equal(t, a.TradeCount, b.TradeCount)
			assert.Equal(t, a.LogHash, b.LogHash)
			assert.Equal(t, a.TraceDigest, b.TraceDigest)
			assert.Equal(t, a.RunID, b.RunID)
			assert.Greater(t, a.TradeCount, 0, "preset produced no trades")
			assert.Zero(t, a.Faults)
		})
	}
}

func TestSeedChangesTrace(t *testing.T) {
	_, a := run(t, shortPreset(t, "single", 1, ""), Options{})
	_, b := run(t, shortPreset(t, "single", 2, ""), Options{})
	assert.NotEqual(t, a.TraceDigest, b.TraceDigest)
	assert.NotEqual(t, a.RunID, b.RunID)
}

// Every fill has a buyer and a seller, and every fee charged to an agent is
// revenue of some venue.
func TestConservation(t *testing.T) {
	r, res := run(t, shortPreset(t, "dual", 7, ""), Options{})
	s := res.Summary
	require.Greater(t, s.Executions, 0)

	var bought, sold uint64
	var fees int64
	for _, a := range s.Agents {
		bought += a.QtyBought
		sold += a.QtySold
		fees += a.FeesPaid
	}
	assert.Equal(t, bought, sold)
	assert.Equal(t, s.Volume, bought)

	var revenue, logged int64
	for _, x := range r.Venues() {
		revenue += x.FeeRevenue()
		logged += s.VenueFees[x.ID()]
	}
	assert.Equal(t, fees, revenue)
	assert.Equal(t, logged, revenue)

	for _, x := range r.Venues() {
		x.Book("ABM").AssertInvariants()
	}
}

func TestRouterSeesBothVenues(t *testing.T) {
	var mem eventlog.MemorySink
	r, _ := run(t, shortPreset(t, "dual", 3, ""), Options{Extra: &mem})
	assert.Equal(t, kernel.Stopped, r.Kernel().State())

	venues := map[int]bool{}
	for _, rec := range mem.OfType(eventlog.TypeOrderSubmitted) {
		venues[int(rec.Agent)] = true
	}
	assert.True(t, venues[0])
	assert.True(t, venues[1])
	assert.Len(t, mem.OfType(eventlog.TypeVenueSummary), 2)
}

func TestArtifacts(t *testing.T) {
	dir := t.TempDir()
	_, res := run(t, shortPreset(t, "single", 5, dir), Options{})

	require.Equal(t, filepath.Join(dir, "single_seed5"), res.OutputDir)
	for _, name := range []string{"events.jsonl", "config.toml", "summary.json"} {
		_, err := os.Stat(filepath.Join(res.OutputDir, name))
		assert.NoError(t, err, name)
	}
	last, err := os.ReadFile(filepath.Join(dir, "last-run"))
	require.NoError(t, err)
	assert.Equal(t, res.OutputDir, string(last))

	reloaded, err := config.Load(filepath.Join(res.OutputDir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), reloaded.Seed)

	fromLog, err := metrics.ComputeFromLog(res.LogPath)
	require.NoError(t, err)
	assert.Equal(t, res.Summary.Executions, fromLog.Executions)
	assert.Equal(t, res.Summary.VenueFees, fromLog.VenueFees)
}

func TestCompressedLogHashesLikePlain(t *testing.T) {
	_, plain := run(t, shortPreset(t, "single", 9, t.TempDir()), Options{})
	cfg := shortPreset(t, "single", 9, t.TempDir())
	cfg.Output.Compress = true
	_, packed := run(t, cfg, Options{})

	assert.Equal(t, ".zst", filepath.Ext(packed.LogPath))
	assert.Equal(t, plain.LogHash, packed.LogHash)
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Duration = encoding.Duration{}

	_, err := NewRunner(cfg, Options{})
	var ce *kernel.ConfigurationError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestCancelledRun(t *testing.T) {
	r, err := NewRunner(shortPreset(t, "single", 1, ""), Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLiveMetricsFollowLog(t *testing.T) {
	m := metrics.New(map[string]string{"scenario": "single"})
	_, res := run(t, shortPreset(t, "single", 4, ""), Options{Metrics: m})
	families, err := m.Registry.Gather()
	require.NoError(t, err)

	var executions float64
	for _, f := range families {
		if f.GetName() != "marketsim_exchange_executions_total" {
			continue
		}
		for _, s := range f.GetMetric() {
			executions += s.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(res.TradeCount), executions)
}
