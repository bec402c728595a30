package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep the higher-order rate λ·γ and print the final outbreak size per λ",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("parallelism") {
				cfg.Sweep.Parallelism, _ = cmd.Flags().GetInt("parallelism")
			}
			if cmd.Flags().Changed("lambda") {
				cfg.Sweep.LambdaValues, _ = cmd.Flags().GetFloat64Slice("lambda")
			}

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			res, err := a.runner.Sweep(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if a.jsonOut {
				type point struct {
					Lambda       float64 `json:"lambda"`
					Seed         uint64  `json:"seed"`
					RunID        string  `json:"run_id"`
					OutbreakSize float64 `json:"outbreak_size"`
				}
				points := make([]point, len(res.Points))
				for i, p := range res.Points {
					points[i] = point{Lambda: p.Lambda, Seed: p.Seed, RunID: p.Summary.RunID, OutbreakSize: p.Summary.OutbreakSize}
				}
				return writeJSON(cmd, map[string]any{
					"sweep_id": res.SweepID,
					"hocs":     res.HOCs,
					"points":   points,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sweep %s: nodes=%d hocs=%v\n", res.SweepID, res.Nodes, res.HOCs)
			fmt.Fprintln(out, "lambda\toutbreak_size")
			for _, p := range res.Points {
				fmt.Fprintf(out, "%g\t%.4f\n", p.Lambda, p.Summary.OutbreakSize)
			}
			return nil
		},
	}
	cmd.Flags().Int("parallelism", 0, "Concurrent sweep points (overrides config)")
	cmd.Flags().Float64Slice("lambda", nil, "λ values to sweep (overrides config)")
	return cmd
}
