package project

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/0x8000-0000/ftagsd/internal/dbfile"
	"github.com/0x8000-0000/ftagsd/internal/indexer"
	"github.com/0x8000-0000/ftagsd/internal/watcher"
)

// Watch starts a background HybridWatcher rooted at the entry's project
// directory and re-parses any changed file straight into the open
// ProjectDB, so a long-running daemon stays current without a client
// ever calling UPDATE_TRANSLATION_UNIT itself. It returns once the
// watcher has started; the re-index loop runs until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, projectName string) error {
	e, err := m.resolve(ctx, projectName)
	if err != nil {
		return err
	}

	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return err
	}

	if err := w.Start(ctx, e.db.Root); err != nil {
		return err
	}

	go m.reindexLoop(ctx, projectName, e, w)
	return nil
}

func (m *Manager) reindexLoop(ctx context.Context, projectName string, e *entry, w *watcher.HybridWatcher) {
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return

		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			m.reindexBatch(ctx, projectName, e, w, batch)

		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			slog.Warn("watcher error", slog.String("project", projectName), slog.Any("error", err))
		}
	}
}

func (m *Manager) reindexBatch(ctx context.Context, projectName string, e *entry, w *watcher.HybridWatcher, batch []watcher.FileEvent) {
	for _, ev := range batch {
		if ev.Operation == watcher.OpDelete || ev.IsDir {
			continue
		}

		path := ev.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.db.Root, path)
		}

		e.mu.Lock()
		err := indexer.IndexFile(ctx, e.db, path)
		e.mu.Unlock()

		if err != nil {
			slog.Warn("re-index failed", slog.String("project", projectName), slog.String("file", path), slog.Any("error", err))
			continue
		}

		e.mu.RLock()
		entry := dbfile.ProjectEntry{
			Name:      e.db.Name,
			Root:      e.db.Root,
			DBPath:    dbfile.ProjectDBPath(e.db.Root),
			UpdatedAt: time.Now(),
		}
		e.mu.RUnlock()

		if upErr := m.catalog.Upsert(ctx, entry); upErr != nil {
			slog.Warn("catalog update failed", slog.String("project", projectName), slog.Any("error", upErr))
		}
	}
}
