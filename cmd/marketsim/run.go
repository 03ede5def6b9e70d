package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/metrics"
	"github.com/akshitanchan/marketsim/internal/sim"
	"github.com/akshitanchan/marketsim/internal/stream"
)

func newRunCmd() *cobra.Command {
	var (
		src         source
		metricsAddr string
		streamAddr  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := src.load(cmd)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			if streamAddr != "" {
				cfg.Stream.Addr = streamAddr
			}

			log := newLogger(cfg)
			defer log.AtExit()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			opts := sim.Options{Logger: log}
			if cfg.Metrics.Addr != "" {
				opts.Metrics = metrics.New(map[string]string{
					"scenario": cfg.Name,
					"seed":     strconv.FormatInt(cfg.Seed, 10),
				})
			}
			if cfg.Stream.Addr != "" {
				opts.Hub = stream.NewHub(log, stream.DefaultBuffer)
			}

			runner, err := sim.NewRunner(cfg, opts)
			if err != nil {
				return err
			}

			// Servers live until the run finishes or ctx is cancelled.
			serveCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, gctx := errgroup.WithContext(serveCtx)
			if opts.Metrics != nil {
				g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr, opts.Metrics) })
			}
			if opts.Hub != nil {
				g.Go(func() error { return stream.Serve(gctx, cfg.Stream.Addr, opts.Hub) })
			}

			var result *sim.RunResult
			g.Go(func() error {
				defer cancel()
				var err error
				result, err = runner.Run(gctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&streamAddr, "stream", "", "serve the live record stream on this address during the run")
	return cmd
}

func printResult(w io.Writer, r *sim.RunResult) {
	fmt.Fprintf(w, "Run %s (%s, seed=%d)\n", r.RunID, r.Name, r.Seed)
	fmt.Fprintf(w, "  Events processed: %d\n", r.EventCount)
	fmt.Fprintf(w, "  Trades executed:  %d\n", r.TradeCount)
	fmt.Fprintf(w, "  Agent faults:     %d\n", r.Faults)
	fmt.Fprintf(w, "  Wall time:        %v\n", r.Duration)
	fmt.Fprintf(w, "  Trace digest:     %s\n", short(r.TraceDigest))
	if r.LogPath != "" {
		fmt.Fprintf(w, "  Log hash:         %s\n", short(r.LogHash))
		fmt.Fprintf(w, "  Output:           %s\n", r.OutputDir)
	}
	venues := make([]domain.AgentID, 0, len(r.Summary.VenueFees))
	for v := range r.Summary.VenueFees {
		venues = append(venues, v)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i] < venues[j] })
	for _, v := range venues {
		fmt.Fprintf(w, "  Venue %d revenue:  %d\n", v, r.Summary.VenueFees[v])
	}
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
