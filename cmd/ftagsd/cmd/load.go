package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/output"
)

func newLoadCmd() *cobra.Command {
	var directory string

	cmd := &cobra.Command{
		Use:   "load <project>",
		Short: "Ask the daemon to load a project's database from disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			client := daemon.NewClient(daemon.DefaultConfig())
			if err := client.LoadDatabase(cmd.Context(), args[0], directory); err != nil {
				return fmt.Errorf("load failed: %w", err)
			}
			out.Success(fmt.Sprintf("Loaded %q", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&directory, "directory", "", "Override source path (default: catalog path)")
	return cmd
}
