package main

import (
	"github.com/spf13/cobra"
)

const defaultRunsDir = "runs"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "marketsim",
		Short:         "Deterministic discrete-event market simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(),
		newSweepCmd(),
		newVerifyCmd(),
		newConfigCmd(),
	)
	return root
}
