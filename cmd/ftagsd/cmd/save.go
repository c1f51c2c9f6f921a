package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/output"
)

func newSaveCmd() *cobra.Command {
	var directory string

	cmd := &cobra.Command{
		Use:   "save <project>",
		Short: "Ask the daemon to persist a project's database to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			client := daemon.NewClient(daemon.DefaultConfig())
			if err := client.SaveDatabase(cmd.Context(), args[0], directory); err != nil {
				return fmt.Errorf("save failed: %w", err)
			}
			out.Success(fmt.Sprintf("Saved %q", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&directory, "directory", "", "Override destination path (default: catalog path)")
	return cmd
}
