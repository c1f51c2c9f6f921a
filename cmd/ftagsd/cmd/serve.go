package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/dbfile"
	"github.com/0x8000-0000/ftagsd/internal/output"
	"github.com/0x8000-0000/ftagsd/internal/project"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ftagsd daemon in the foreground",
		Long: `Runs the ftagsd daemon: a Unix-socket server holding every loaded
project's symbol database in memory, answering QUERY, DUMP_TRANSLATION_UNIT,
UPDATE_TRANSLATION_UNIT, QUERY_STATISTICS, SAVE_DATABASE, and LOAD_DATABASE
commands until it receives SHUT_DOWN or a termination signal.

Use 'ftagsd daemon start' to run this in the background instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	cfg := daemon.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid daemon config: %w", err)
	}
	if err := cfg.EnsureDir(); err != nil {
		return err
	}

	pidFile := daemon.NewPIDFile(cfg.PIDPath)
	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = pidFile.Remove() }()

	catalog, err := dbfile.OpenCatalog()
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = catalog.Close() }()

	server, err := daemon.NewServer(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mgr := project.NewManager(catalog)
	server.SetHandler(mgr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchKnownProjects(ctx, mgr, catalog)

	out.Status("", fmt.Sprintf("ftagsd daemon listening on %s", cfg.SocketPath))
	slog.Info("daemon starting", slog.String("socket", cfg.SocketPath), slog.Int("pid", os.Getpid()))

	err = server.ListenAndServe(ctx)
	if err != nil && ctx.Err() != nil {
		// Clean shutdown via signal/context cancellation.
		return nil
	}
	return err
}

// watchKnownProjects starts a file watcher for every project already in
// the catalog, so the daemon keeps their databases current as source
// files change without waiting for a client to push an update.
func watchKnownProjects(ctx context.Context, mgr *project.Manager, catalog *dbfile.Catalog) {
	entries, err := catalog.List(ctx)
	if err != nil {
		slog.Warn("failed to list catalog projects for watching", slog.Any("error", err))
		return
	}

	for _, e := range entries {
		if err := mgr.Watch(ctx, e.Name); err != nil {
			slog.Warn("failed to watch project", slog.String("project", e.Name), slog.Any("error", err))
		}
	}
}
