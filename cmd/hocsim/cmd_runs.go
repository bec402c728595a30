package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/hoc-contagion/internal/results"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs stored in the results database",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

// openStore resolves the results path from config and flags.
func openStore(cmd *cobra.Command) (*results.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Results.Path == "" {
		return nil, errors.New("no results database configured (set results.path or --results)")
	}
	return results.Open(cmd.Context(), cfg.Results.Path)
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			sweepID, _ := cmd.Flags().GetString("sweep")
			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := store.ListRuns(cmd.Context(), sweepID, limit)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(out, "%s\t%s\t%s\tlambda=%g\tsteps=%d\toutbreak=%.4f\t%s\n",
					r.ID, r.Kind, r.Model, r.Lambda, r.Steps, r.OutbreakSize, r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
	cmd.Flags().String("sweep", "", "Only show the points of this sweep")
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one stored run with its step history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd, run)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (%s, %s, resolution=%s)\n", run.ID, run.Kind, run.Model, run.Resolution)
			fmt.Fprintf(out, "beta=%g gamma=%g beta_high_order=%v seed=%d\n", run.Beta, run.Gamma, run.BetaHighOrder, run.Seed)
			fmt.Fprintf(out, "nodes=%d hyperedges=%d hocs=%v skipped=%v\n", run.Nodes, run.Hyperedges, run.HOCCounts, run.SkippedOrders)
			for i, c := range run.History {
				fmt.Fprintf(out, "%d\t%s\n", i+1, c.String())
			}
			fmt.Fprintf(out, "outbreak size: %.4f\n", run.OutbreakSize)
			return nil
		},
	}
}
