package main

import (
	"github.com/spf13/cobra"

	"github.com/akshitanchan/marketsim/internal/config"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/scenario"
)

// source is the flag set shared by commands that build a run config
type source struct {
	configPath string
	scenario   string
	seed       int64
	out        string
	compress   bool
}

func (s *source) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.configPath, "config", "", "TOML run configuration (overrides --scenario)")
	f.StringVar(&s.scenario, "scenario", "single", "preset name")
	f.Int64Var(&s.seed, "seed", 42, "random seed")
	f.StringVar(&s.out, "out", defaultRunsDir, "output directory; empty disables the record log")
	f.BoolVar(&s.compress, "compress", false, "zstd-compress the record log")
}

// load returns the config with the command-line overrides applied. Flags
// only override a config file when they were set explicitly.
func (s *source) load(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if s.configPath != "" {
		cfg, err = config.Load(s.configPath)
	} else {
		cfg, err = scenario.Get(s.scenario, s.seed)
	}
	if err != nil {
		return nil, err
	}
	fromFile := s.configPath != ""
	if !fromFile || cmd.Flags().Changed("seed") {
		cfg.Seed = s.seed
	}
	if !fromFile || cmd.Flags().Changed("out") {
		cfg.Output.Dir = s.out
	}
	if cmd.Flags().Changed("compress") {
		cfg.Output.Compress = s.compress
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) *logging.Logger {
	log := logging.NewLoggerFromEnv(cfg.Logging.Environment)
	log.SetLevel(cfg.Logging.Level.Get())
	return log
}
