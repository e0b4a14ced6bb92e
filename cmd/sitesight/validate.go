// cmd/sitesight/validate.go
package main

import (
	"fmt"
	"io"

	"sitesight/internal/scoring"
	"sitesight/internal/sites"
	"sitesight/internal/source"

	"github.com/spf13/cobra"
)

func newValidateCmd(flags *globalFlags) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Schema-check and score a sites document",
		Long:  "Validate a sites document against the input schema and print per-site health scores. No model is loaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if input == "" {
				input = a.cfg.Source.SitesPath
			}

			scorer, err := scoring.NewScorerFromConfig(a.cfg.Scoring, a.log)
			if err != nil {
				return err
			}

			in, err := source.NewFileSource(input, a.log).Load(cmd.Context())
			if err != nil {
				return err
			}

			records, err := sites.Flatten(scorer, in)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), input, in, sites.Aggregate(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Sites document (default: source.sites_path)")
	return cmd
}

func printSummary(w io.Writer, path string, in []sites.Site, aggs []sites.SiteAggregate) {
	fmt.Fprintf(w, "%s: %d sites, %d scored\n", path, len(in), len(aggs))
	for _, agg := range aggs {
		fmt.Fprintf(w, "  %-24s health=%.2f label=%d resources=%d\n",
			agg.SiteName, scoring.Round(agg.SiteHealthScore, 2), agg.RankLabel, agg.ResourceCount)
	}
	for _, name := range sites.Empty(in) {
		fmt.Fprintf(w, "  %-24s skipped: no resources\n", name)
	}
}
