package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/output"
)

func newStatsCmd() *cobra.Command {
	var group string
	var analyze bool

	cmd := &cobra.Command{
		Use:   "stats <project>",
		Short: "Print record/symbol counts for a loaded project",
		Long: `Reports QUERY_STATISTICS remarks for a project the daemon has loaded
(record count, symbol count, functions, classes, global variables).
Pass --analyze to run ANALYZE_DATA instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			client := daemon.NewClient(daemon.DefaultConfig())

			var (
				remarks []string
				err     error
			)
			if analyze {
				remarks, err = client.AnalyzeData(cmd.Context(), args[0], group)
			} else {
				remarks, err = client.QueryStatistics(cmd.Context(), args[0], group)
			}
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}

			for _, r := range remarks {
				out.Status("", r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Statistics group filter")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Run ANALYZE_DATA instead of QUERY_STATISTICS")
	return cmd
}
