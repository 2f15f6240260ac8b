package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "drudge",
		Short:         "Drive synthetic workloads through a drudge worker pool",
		Run:           func(cmd *cobra.Command, args []string) { _ = cmd.Help() },
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd(), newInfoCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "drudge:", err)
		os.Exit(1)
	}
}
