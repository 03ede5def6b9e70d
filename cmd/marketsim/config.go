package main

import (
	"github.com/spf13/cobra"

	"github.com/akshitanchan/marketsim/internal/config"
	"github.com/akshitanchan/marketsim/internal/scenario"
)

func newConfigCmd() *cobra.Command {
	var (
		name string
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print a preset (or the defaults) as TOML, as a starting point for --config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.NewDefaultConfig()
			if name != "" {
				var err error
				if cfg, err = scenario.Get(name, seed); err != nil {
					return err
				}
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&name, "scenario", "", "preset to print; empty prints the defaults")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed written into the preset")
	return cmd
}
