package main

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/akshitanchan/marketsim/internal/sim"
)

func newSweepCmd() *cobra.Command {
	var (
		src      source
		count    int
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one configuration over consecutive seeds in parallel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return errors.New("--count must be positive")
			}
			base, err := src.load(cmd)
			if err != nil {
				return err
			}
			log := newLogger(base)
			defer log.AtExit()

			results := make([]*sim.RunResult, count)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(parallel, 1))
			for i := 0; i < count; i++ {
				i := i
				cfg := *base
				cfg.Seed = base.Seed + int64(i)
				g.Go(func() error {
					runner, err := sim.NewRunner(&cfg, sim.Options{Logger: log})
					if err != nil {
						return err
					}
					res, err := runner.Run(ctx)
					if err != nil {
						return errors.Wrapf(err, "seed %d", cfg.Seed)
					}
					results[i] = res
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEED\tEVENTS\tTRADES\tVOLUME\tFAULTS\tTRACE")
			for _, r := range results {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\n",
					r.Seed, r.EventCount, r.TradeCount, r.Summary.Volume, r.Faults, short(r.TraceDigest))
			}
			return tw.Flush()
		},
	}
	src.register(cmd)
	cmd.Flags().IntVar(&count, "count", 4, "number of seeds, starting at --seed")
	cmd.Flags().IntVar(&parallel, "parallel", runtime.GOMAXPROCS(0), "runs in flight at once")
	return cmd
}
