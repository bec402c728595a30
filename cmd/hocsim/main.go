package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hocsim",
		Short: "High-order component identification and contagion simulation",
		Long: `hocsim identifies high-order components (HOCs) of a hypergraph and runs
SIR/SIS contagion over them, spreading both within hyperedges and across
hyperedges that overlap in at least m nodes.

The hypergraph comes from an nverts/simplices dataset or from the random
generator, as selected by the config file.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	rootCmd.PersistentFlags().String("results", "", "SQLite results database (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newHOCsCmd(),
		newRunCmd(),
		newSweepCmd(),
		newRunsCmd(),
	)
	return rootCmd
}
