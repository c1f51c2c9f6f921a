package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/dbfile"
	"github.com/0x8000-0000/ftagsd/internal/ui"
)

func newTopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "Interactive view of every project the daemon knows about",
		Long: `A live-refreshing table of catalog projects (root, last indexed,
record/symbol counts), polled from the running daemon every couple of
seconds. Press q to quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTop(cmd)
		},
	}
}

func runTop(cmd *cobra.Command) error {
	cfg := daemon.DefaultConfig()
	catalog, err := dbfile.OpenCatalog()
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = catalog.Close() }()

	source := &topSource{
		catalog: catalog,
		client:  daemon.NewClient(cfg),
		socket:  cfg.SocketPath,
	}

	program := tea.NewProgram(ui.NewTopModel(source), tea.WithOutput(cmd.OutOrStdout()))
	_, err = program.Run()
	return err
}

// topSource adapts dbfile.Catalog + daemon.Client to ui.TopDataSource.
type topSource struct {
	catalog *dbfile.Catalog
	client  *daemon.Client
	socket  string
}

func (s *topSource) SocketPath() string {
	return s.socket
}

func (s *topSource) Rows(ctx context.Context) ([]ui.ProjectRow, error) {
	entries, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]ui.ProjectRow, 0, len(entries))
	for _, e := range entries {
		row := ui.ProjectRow{
			Name:        e.Name,
			Root:        e.Root,
			LastIndexed: e.UpdatedAt,
			Records:     "-",
			Symbols:     "-",
		}
		if s.client.IsRunning() {
			if stats, statErr := s.client.QueryStatistics(ctx, e.Name, ""); statErr == nil {
				row.Records, row.Symbols = statRemark(stats, "records"), statRemark(stats, "symbols")
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func statRemark(stats []string, label string) string {
	prefix := label + ": "
	for _, s := range stats {
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			return s[len(prefix):]
		}
	}
	return "-"
}
