package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/akshitanchan/marketsim/internal/config"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/metrics"
	"github.com/akshitanchan/marketsim/internal/sim"
)

// ErrMismatch is returned when a run directory does not reproduce
var ErrMismatch = errors.New("run does not verify")

func newVerifyCmd() *cobra.Command {
	var (
		runDir  string
		lastRun bool
		rerun   bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a run's record log against its summary, optionally by re-running it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if lastRun {
				data, err := os.ReadFile(filepath.Join(defaultRunsDir, "last-run"))
				if err != nil {
					return errors.Wrap(err, "no last run found")
				}
				runDir = strings.TrimSpace(string(data))
			}
			if runDir == "" {
				return errors.New("--run-dir or --last-run required")
			}
			return verifyRun(cmd.Context(), cmd.OutOrStdout(), runDir, rerun)
		},
	}
	cmd.Flags().StringVar(&runDir, "run-dir", "", "run directory holding summary.json and the record log")
	cmd.Flags().BoolVar(&lastRun, "last-run", false, "verify the most recent run under "+defaultRunsDir)
	cmd.Flags().BoolVar(&rerun, "rerun", false, "re-run config.toml and compare the new log hash")
	return cmd
}

func verifyRun(ctx context.Context, w io.Writer, runDir string, rerun bool) error {
	data, err := os.ReadFile(filepath.Join(runDir, "summary.json"))
	if err != nil {
		return errors.Wrap(err, "read summary")
	}
	var want sim.RunResult
	if err := json.Unmarshal(data, &want); err != nil {
		return errors.Wrap(err, "decode summary")
	}

	logPath := filepath.Join(runDir, filepath.Base(want.LogPath))
	hash, err := eventlog.HashFile(logPath)
	if err != nil {
		return err
	}
	if hash != want.LogHash {
		return errors.Wrapf(ErrMismatch, "log hash %s, summary says %s", short(hash), short(want.LogHash))
	}
	fmt.Fprintf(w, "Log hash matches:     %s\n", short(hash))

	got, err := metrics.ComputeFromLog(logPath)
	if err != nil {
		return err
	}
	if got.Executions != want.TradeCount {
		return errors.Wrapf(ErrMismatch, "log has %d executions, summary says %d", got.Executions, want.TradeCount)
	}
	fmt.Fprintf(w, "Executions match:     %d\n", got.Executions)

	if !rerun {
		return nil
	}
	cfg, err := config.Load(filepath.Join(runDir, "config.toml"))
	if err != nil {
		return err
	}
	tmp, err := os.MkdirTemp("", "marketsim-verify-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	cfg.Output.Dir = tmp

	runner, err := sim.NewRunner(cfg, sim.Options{})
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if res.LogHash != want.LogHash {
		return errors.Wrapf(ErrMismatch, "re-run log hash %s, original %s", short(res.LogHash), short(want.LogHash))
	}
	fmt.Fprintf(w, "Re-run reproduces:    %s\n", short(res.LogHash))
	return nil
}
