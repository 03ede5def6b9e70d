// Package sim wires a run configuration into venues, agents, a kernel and
// the record sinks, and executes it.
package sim

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/config"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/exchange"
	"github.com/akshitanchan/marketsim/internal/kernel"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/metrics"
	"github.com/akshitanchan/marketsim/internal/stream"
)

// RunResult holds the output of a simulation run.
type RunResult struct {
	RunID       string           `json:"run_id"`
	Name        string           `json:"name"`
	Seed        int64            `json:"seed"`
	EventCount  uint64           `json:"event_count"`
	TradeCount  int              `json:"trade_count"`
	Duration    time.Duration    `json:"wall_duration"`
	LogPath     string           `json:"log_path,omitempty"`
	LogHash     string           `json:"log_hash,omitempty"`
	OutputDir   string           `json:"output_dir,omitempty"`
	TraceDigest string           `json:"trace_digest"`
	Faults      int              `json:"faults"`
	Summary     *metrics.Summary `json:"summary"`
}

// Options carries the live surfaces a caller may attach. All are optional.
type Options struct {
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Hub     *stream.Hub
	// Extra receives every record after the built-in sinks
	Extra eventlog.Sink
}

// Runner executes one configured simulation.
type Runner struct {
	cfg       *config.Config
	log       *logging.Logger
	runID     uuid.UUID
	kernel    *kernel.Kernel
	venues    []*exchange.Exchange
	collector *metrics.Collector
	writer    *eventlog.Writer
	outputDir string
	logPath   string
}

// RunID derives a stable run identifier from the run name and seed, so
// repeated runs of the same configuration share it.
func RunID(name string, seed int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name+"/"+strconv.FormatInt(seed, 10)))
}

// NewRunner validates cfg and builds every component. Invalid configuration
// is reported as a *kernel.ConfigurationError.
func NewRunner(cfg *config.Config, opts Options) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &kernel.ConfigurationError{Field: "config", Err: err}
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := &Runner{
		cfg:   cfg,
		log:   log.Named("sim"),
		runID: RunID(cfg.Name, cfg.Seed),
	}

	start := cfg.Start.SimTime()
	stop := start + cfg.Duration.SimTime()

	model, err := buildLatency(cfg, rosterSize(cfg))
	if err != nil {
		return nil, &kernel.ConfigurationError{Field: "latency", Err: err}
	}
	o, err := buildOracle(cfg, start)
	if err != nil {
		return nil, &kernel.ConfigurationError{Field: "oracle", Err: err}
	}
	r.venues, err = buildVenues(cfg, start, stop)
	if err != nil {
		return nil, &kernel.ConfigurationError{Field: "venues", Err: err}
	}
	traders, err := buildTraders(cfg, r.venues, o)
	if err != nil {
		return nil, &kernel.ConfigurationError{Field: "agents", Err: err}
	}
	agents := make([]kernel.Agent, 0, len(r.venues)+len(traders))
	for _, x := range r.venues {
		agents = append(agents, x)
	}
	agents = append(agents, traders...)

	r.collector = metrics.NewCollector(opts.Metrics)
	sinks := []eventlog.Sink{r.collector}
	if cfg.Output.Dir != "" {
		if err := r.openLog(); err != nil {
			return nil, err
		}
		sinks = append(sinks, r.writer)
	}
	if opts.Hub != nil {
		sinks = append(sinks, opts.Hub)
	}
	if opts.Extra != nil {
		sinks = append(sinks, opts.Extra)
	}

	r.kernel, err = kernel.New(kernel.Config{
		Start:                   start,
		Stop:                    stop,
		Seed:                    cfg.Seed,
		Latency:                 model,
		DefaultComputationDelay: cfg.ComputationDelay.SimTime(),
		Sink:                    eventlog.Multi(sinks...),
		Logger:                  log.With(logging.String("run", r.runID.String())),
		Metrics:                 opts.Metrics,
	}, agents)
	if err != nil {
		r.closeLog()
		return nil, err
	}
	return r, nil
}

func (r *Runner) openLog() error {
	r.outputDir = filepath.Join(r.cfg.Output.Dir, r.cfg.Name+"_seed"+strconv.FormatInt(r.cfg.Seed, 10))
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	name := "events.jsonl"
	if r.cfg.Output.Compress {
		name += ".zst"
	}
	r.logPath = filepath.Join(r.outputDir, name)
	w, err := eventlog.NewWriter(r.logPath)
	if err != nil {
		return err
	}
	r.writer = w
	return nil
}

func (r *Runner) closeLog() error {
	if r.writer == nil {
		return nil
	}
	w := r.writer
	r.writer = nil
	return w.Close()
}

// Kernel returns the run's kernel, for inspection after Run.
func (r *Runner) Kernel() *kernel.Kernel { return r.kernel }

// Venues returns the exchanges in id order.
func (r *Runner) Venues() []*exchange.Exchange { return r.venues }

// Run executes the simulation and, when an output directory is configured,
// writes the record log, the config and a summary next to it.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	startWall := time.Now()
	r.log.Info("run",
		logging.String("name", r.cfg.Name),
		logging.Int64("seed", r.cfg.Seed),
		logging.Int("venues", len(r.venues)),
		logging.String("output", r.outputDir))

	runErr := r.kernel.Run(ctx)
	closeErr := r.closeLog()
	if runErr != nil {
		return nil, runErr
	}
	if closeErr != nil {
		return nil, errors.Wrap(closeErr, "close event log")
	}

	summary := r.collector.Compute()
	res := &RunResult{
		RunID:       r.runID.String(),
		Name:        r.cfg.Name,
		Seed:        r.cfg.Seed,
		EventCount:  r.kernel.Dispatched,
		TradeCount:  summary.Executions,
		Duration:    time.Since(startWall),
		OutputDir:   r.outputDir,
		TraceDigest: r.kernel.TraceDigest(),
		Faults:      len(r.kernel.Faults()),
		Summary:     summary,
	}
	if r.outputDir == "" {
		return res, nil
	}

	res.LogPath = r.logPath
	hash, err := eventlog.HashFile(r.logPath)
	if err != nil {
		return nil, errors.Wrap(err, "hash log")
	}
	res.LogHash = hash
	if err := r.writeArtifacts(res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) writeArtifacts(res *RunResult) error {
	f, err := os.Create(filepath.Join(r.outputDir, "config.toml"))
	if err != nil {
		return errors.Wrap(err, "write config")
	}
	if err := r.cfg.Encode(f); err != nil {
		f.Close()
		return errors.Wrap(err, "encode config")
	}
	if err := f.Close(); err != nil {
		return err
	}

	// Wall duration differs between runs; keep it out of the artifact.
	stable := *res
	stable.Duration = 0
	data, err := json.MarshalIndent(&stable, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal summary")
	}
	if err := os.WriteFile(filepath.Join(r.outputDir, "summary.json"), data, 0o644); err != nil {
		return errors.Wrap(err, "write summary")
	}

	lastRun := filepath.Join(filepath.Dir(r.outputDir), "last-run")
	return errors.Wrap(os.WriteFile(lastRun, []byte(r.outputDir), 0o644), "write last-run")
}
