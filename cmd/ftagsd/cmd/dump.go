package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/output"
)

func newDumpCmd() *cobra.Command {
	var projectName string

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Dump every record belonging to a file's translation unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			cfg := daemon.DefaultConfig()
			client := daemon.NewClient(cfg)

			cs, err := client.DumpTranslationUnit(cmd.Context(), projectName, args[0])
			if err != nil {
				return fmt.Errorf("dump failed: %w", err)
			}
			for _, rec := range cs.Inflate() {
				out.Status("", fmt.Sprintf("%-30s %s:%d:%d", rec.Symbol, rec.File, rec.Line, rec.Column))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project", "", "Project name (required)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
