package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/dbfile"
	"github.com/0x8000-0000/ftagsd/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	noColor := !isatty.IsTerminal(os.Stdout.Fd())

	cmd := &cobra.Command{
		Use:   "status <project>",
		Short: "Show a project's database size, statistics, and daemon state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], jsonOutput, noColor)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", noColor, "Disable colored output")
	return cmd
}

func runStatus(cmd *cobra.Command, projectName string, jsonOutput, noColor bool) error {
	ctx := cmd.Context()

	catalog, err := dbfile.OpenCatalog()
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = catalog.Close() }()

	entry, err := catalog.Get(ctx, projectName)
	if err != nil {
		return fmt.Errorf("unknown project %q: %w", projectName, err)
	}

	info := ui.StatusInfo{
		ProjectName: entry.Name,
		Root:        entry.Root,
		LastIndexed: entry.UpdatedAt,
	}
	if fi, statErr := os.Stat(entry.DBPath); statErr == nil {
		info.DBSize = fi.Size()
	}

	client := daemon.NewClient(daemon.DefaultConfig())
	if client.IsRunning() {
		info.DaemonStatus = "running"
		info.WatcherStatus = "running"
		if stats, statsErr := client.QueryStatistics(ctx, projectName, ""); statsErr == nil {
			info.Stats = stats
		}
	} else {
		info.DaemonStatus = "stopped"
		info.WatcherStatus = "n/a"
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}
