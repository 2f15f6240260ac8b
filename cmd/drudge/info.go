package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/azargarov/drudge"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the features linked into this build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:  %s\n", drudge.BackendName)
			fmt.Fprintf(out, "retry:    %t\n", drudge.RetryEnabled)
			fmt.Fprintf(out, "affinity: %t\n", drudge.AffinitySupported)
			fmt.Fprintf(out, "cpus:     %d\n", runtime.NumCPU())
			fmt.Fprintf(out, "cores:    %v\n", drudge.AvailableCores())
			return nil
		},
	}
}
