// Package indexer is the full pipeline from a project directory to a
// populated tags.ProjectDB: internal/scanner finds candidate C/C++
// files, internal/worker fans their parsing out across a bounded pool,
// internal/frontend turns each one into a tags.Record slice, and the
// per-file results are folded back into one database — the same
// "background indexer with progress tracking" role internal/async's
// BackgroundIndexer plays for the teacher, generalized from one
// monolithic embedding pass to many independent per-file parses.
package indexer

import (
	"context"
	"fmt"
	"os"

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/frontend"
	"github.com/0x8000-0000/ftagsd/internal/scanner"
	"github.com/0x8000-0000/ftagsd/internal/tags"
	"github.com/0x8000-0000/ftagsd/internal/worker"
)

// Options configures one indexing run.
type Options struct {
	// Name is the project name the resulting ProjectDB is tagged with.
	Name string

	// Root is the project directory to scan.
	Root string

	// Include/Exclude are glob patterns passed straight through to
	// internal/scanner.ScanOptions.
	Include []string
	Exclude []string

	// MaxFiles caps how many source files are parsed in one run; 0
	// means unbounded.
	MaxFiles int

	// Workers bounds parse concurrency; 0 means internal/worker's
	// own default (1).
	Workers int
}

// Result reports what one indexing run produced.
type Result struct {
	DB *tags.ProjectDB

	// FilesScanned is every file the scanner turned up, regardless of
	// whether it was a parseable C/C++ source.
	FilesScanned int

	// FilesIndexed is how many files were actually parsed and merged.
	FilesIndexed int

	// Failed maps a file path to the error that kept it out of DB.
	Failed map[string]error
}

// parseJob is the per-file unit handed to the worker pool: a fresh,
// private ProjectDB so concurrent goroutines never touch the same
// strtab/pathtab.Table, matching neither of which is safe for
// concurrent AddKey calls.
func parseJob(ctx context.Context, job worker.Job) (any, error) {
	source, err := os.ReadFile(job.Path)
	if err != nil {
		return nil, ferrors.IOError("failed to read "+job.Path, err)
	}

	sub := tags.NewProjectDB("", "")
	fe := frontend.New(sub.Symbols, sub.Namespaces, sub.FileNames)
	defer fe.Close()

	records, err := fe.ParseFile(ctx, job.Path, source)
	if err != nil {
		return nil, err
	}
	if _, err := sub.AddTranslationUnit(job.Path, records); err != nil {
		return nil, err
	}
	return sub, nil
}

// IndexProject scans opts.Root for C/C++ files and parses every one it
// finds into a fresh tags.ProjectDB, reporting per-file failures
// without aborting the whole run — a malformed header in one
// translation unit should never keep the rest of a project from being
// indexed.
func IndexProject(ctx context.Context, opts Options) (*Result, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("indexer: failed to create scanner: %w", err)
	}

	scanResults, err := sc.Scan(ctx, &scanner.ScanOptions{
		RootDir:          opts.Root,
		IncludePatterns:  opts.Include,
		ExcludePatterns:  opts.Exclude,
		RespectGitignore: true,
		Workers:          opts.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: failed to scan %s: %w", opts.Root, err)
	}

	var paths []string
	scanned := 0
	for r := range scanResults {
		if r.Error != nil {
			continue
		}
		scanned++
		if !scanner.IsSourceFile(r.File.Language) {
			continue
		}
		if opts.MaxFiles > 0 && len(paths) >= opts.MaxFiles {
			continue
		}
		paths = append(paths, r.File.AbsPath)
	}

	jobs := make([]worker.Job, len(paths))
	for i, p := range paths {
		jobs[i] = worker.Job{Path: p}
	}

	pool := worker.New(opts.Workers)
	results, _ := pool.Run(ctx, jobs, parseJob)

	db := tags.NewProjectDB(opts.Name, opts.Root)
	res := &Result{DB: db, FilesScanned: scanned, Failed: make(map[string]error)}

	for _, r := range results {
		if r.Err != nil {
			res.Failed[r.Job.Path] = r.Err
			continue
		}
		sub := r.Value.(*tags.ProjectDB)
		if err := db.MergeFrom(sub); err != nil {
			res.Failed[r.Job.Path] = err
			continue
		}
		res.FilesIndexed++
	}

	return res, nil
}

// IndexFile parses a single file in isolation and merges it into db,
// using UpdateFrom so a re-index of an already-indexed file replaces
// its prior translation unit rather than being skipped — the behavior
// UPDATE_TRANSLATION_UNIT needs for an incremental re-scan.
func IndexFile(ctx context.Context, db *tags.ProjectDB, path string) error {
	value, err := parseJob(ctx, worker.Job{Path: path})
	if err != nil {
		return err
	}
	return db.UpdateFrom(value.(*tags.ProjectDB))
}
