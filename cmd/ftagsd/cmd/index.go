package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/config"
	"github.com/0x8000-0000/ftagsd/internal/dbfile"
	"github.com/0x8000-0000/ftagsd/internal/indexer"
	"github.com/0x8000-0000/ftagsd/internal/output"
	"github.com/0x8000-0000/ftagsd/internal/project"
)

func newIndexCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Scan a project and build its symbol database",
		Long: `Scans a C/C++ project tree, parses every translation unit it finds,
and saves the resulting symbol database to the local cache so 'ftagsd
query'/'stats'/'dump' can serve it without a running daemon having
already loaded it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runIndex(cmd.Context(), cmd, dir, name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (default: directory base name)")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, dir, name string) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(dir)
	if err != nil {
		if root, err = filepath.Abs(dir); err != nil {
			return fmt.Errorf("failed to resolve project root: %w", err)
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if name == "" {
		name = filepath.Base(root)
	}

	out.Status("", fmt.Sprintf("Indexing %s as %q...", root, name))

	res, err := indexer.IndexProject(ctx, indexer.Options{
		Name:     name,
		Root:     root,
		Include:  cfg.Paths.Include,
		Exclude:  cfg.Paths.Exclude,
		MaxFiles: cfg.Performance.MaxFiles,
		Workers:  cfg.Performance.IndexWorkers,
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", root, err)
	}

	for path, ferr := range res.Failed {
		out.Warningf("failed to parse %s: %s", path, ferr)
	}

	catalog, err := dbfile.OpenCatalog()
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = catalog.Close() }()

	mgr := project.NewManager(catalog)
	if err := mgr.Register(ctx, res.DB); err != nil {
		return fmt.Errorf("failed to register project: %w", err)
	}
	if err := mgr.SaveDatabase(name, ""); err != nil {
		return fmt.Errorf("failed to save database: %w", err)
	}

	out.Success(fmt.Sprintf("Indexed %d/%d files (%d functions, %d classes)",
		res.FilesIndexed, res.FilesScanned, len(res.DB.GetFunctions()), len(res.DB.GetClasses())))
	return nil
}
