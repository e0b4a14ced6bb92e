// cmd/sitesight/main.go
//
// sitesight scores site telemetry, ranks sites with a learned model and
// attaches remediation recommendations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "sitesight",
		Short: "Site health scoring, ranking and recommendations",
		Long: `sitesight turns per-resource telemetry statuses into health scores,
ranks sites with a learned ordering model and recommends remediation
actions per resource.

serve     runs the rank-sites job worker with health and metrics endpoints
rank      ranks a sites document once and writes the result
validate  schema-checks and scores a sites document without any model`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level")

	rootCmd.AddCommand(newServeCmd(flags), newRankCmd(flags), newValidateCmd(flags))
	return rootCmd
}
