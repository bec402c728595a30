package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type hocOrderReport struct {
	Order      int   `json:"order"`
	Components int   `json:"components"`
	Sizes      []int `json:"sizes"`
}

func newHOCsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hocs",
		Short: "Identify high-order components of the configured hypergraph",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			h, hocs, err := a.runner.Identify(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			report := make([]hocOrderReport, 0, len(hocs))
			for _, order := range hocs.Orders() {
				comps := hocs[order]
				sizes := make([]int, len(comps))
				for i, c := range comps {
					sizes[i] = len(c)
				}
				report = append(report, hocOrderReport{Order: order, Components: len(comps), Sizes: sizes})
			}

			if a.jsonOut {
				return writeJSON(cmd, map[string]any{
					"nodes":      h.NumNodes(),
					"hyperedges": h.NumHyperedges(),
					"orders":     report,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nodes=%d hyperedges=%d mean_degree=%.3f\n", h.NumNodes(), h.NumHyperedges(), h.MeanDegree())
			if len(report) == 0 {
				fmt.Fprintln(out, "no high-order components")
				return nil
			}
			for _, r := range report {
				fmt.Fprintf(out, "order %d: %d components %v\n", r.Order, r.Components, r.Sizes)
			}
			return nil
		},
	}
}
