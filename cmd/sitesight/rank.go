// cmd/sitesight/rank.go
package main

import (
	"sitesight/internal/pipeline"
	"sitesight/internal/sink"
	"sitesight/internal/source"

	"github.com/spf13/cobra"
)

func newRankCmd(flags *globalFlags) *cobra.Command {
	var (
		input string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a sites document once",
		Long:  "Load a sites document, rank it, write the configured sinks and print the ranked sites as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if input == "" {
				input = a.cfg.Source.SitesPath
			}

			var extra []pipeline.Sink
			if !quiet {
				extra = append(extra, sink.NewStream(cmd.OutOrStdout()))
			}

			ctx := cmd.Context()
			svc, err := a.buildService(ctx, extra...)
			if err != nil {
				return err
			}

			in, err := source.NewFileSource(input, a.log).Load(ctx)
			if err != nil {
				return err
			}

			_, err = svc.Run(ctx, in)
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Sites document (default: source.sites_path)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print results to stdout")
	return cmd
}
