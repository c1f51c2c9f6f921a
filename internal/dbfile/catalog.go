package dbfile

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no cgo

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
)

// Catalog tracks every project ftagsd knows about — its name, root
// directory, on-disk database path, and when it was last saved — in a
// small sqlite table, so a LOAD_DATABASE or QUERY command naming a bare
// project can resolve it without rescanning the filesystem. Independent
// of any one project's own ProjectDB serialization.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (creating if necessary) the catalog database at
// CacheDir()/catalog.db.
func OpenCatalog() (*Catalog, error) {
	if err := os.MkdirAll(CacheDir(), 0o755); err != nil {
		return nil, ferrors.IOError("failed to create cache directory", err)
	}
	path := filepath.Join(CacheDir(), "catalog.db")

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, ferrors.IOError("failed to open catalog database", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS projects (
		name       TEXT PRIMARY KEY,
		root       TEXT NOT NULL,
		db_path    TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, ferrors.IOError("failed to create catalog schema", err)
	}

	return &Catalog{db: db}, nil
}

// Close releases the catalog's database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// ProjectEntry is one row of the catalog.
type ProjectEntry struct {
	Name      string
	Root      string
	DBPath    string
	UpdatedAt time.Time
}

// Upsert records or refreshes a project's catalog entry.
func (c *Catalog) Upsert(ctx context.Context, entry ProjectEntry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO projects (name, root, db_path, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			root = excluded.root,
			db_path = excluded.db_path,
			updated_at = excluded.updated_at
	`, entry.Name, entry.Root, entry.DBPath, entry.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return ferrors.IOError("failed to upsert catalog entry", err)
	}
	return nil
}

// Get resolves a bare project name to its catalog entry.
func (c *Catalog) Get(ctx context.Context, name string) (ProjectEntry, error) {
	row := c.db.QueryRowContext(ctx, `SELECT name, root, db_path, updated_at FROM projects WHERE name = ?`, name)

	var entry ProjectEntry
	var updatedAt string
	if err := row.Scan(&entry.Name, &entry.Root, &entry.DBPath, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return ProjectEntry{}, ferrors.UnknownProjectError(name)
		}
		return ProjectEntry{}, ferrors.IOError("failed to read catalog entry", err)
	}
	parsed, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return ProjectEntry{}, fmt.Errorf("dbfile: corrupt updated_at for project %q: %w", name, err)
	}
	entry.UpdatedAt = parsed
	return entry, nil
}

// List returns every project in the catalog, ordered by name.
func (c *Catalog) List(ctx context.Context) ([]ProjectEntry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, root, db_path, updated_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, ferrors.IOError("failed to list catalog entries", err)
	}
	defer rows.Close()

	var entries []ProjectEntry
	for rows.Next() {
		var entry ProjectEntry
		var updatedAt string
		if err := rows.Scan(&entry.Name, &entry.Root, &entry.DBPath, &updatedAt); err != nil {
			return nil, ferrors.IOError("failed to scan catalog entry", err)
		}
		entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Remove deletes a project's catalog entry. It does not touch the
// underlying database file.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM projects WHERE name = ?`, name)
	if err != nil {
		return ferrors.IOError("failed to remove catalog entry", err)
	}
	return nil
}
