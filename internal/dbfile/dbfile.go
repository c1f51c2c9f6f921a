// Package dbfile resolves where a ftagsd project's on-disk database
// lives, guards writes to it with an exclusive file lock, and tracks
// every known project in a small sqlite catalog — the filesystem-facing
// half of persistence that sits below internal/tags' serialization
// format.
package dbfile

import (
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
)

// databaseFileName is the serialized ProjectDB's file name within its
// per-project cache directory.
const databaseFileName = "project.data"

// CacheDir returns the directory ftagsd stores project data under,
// following the XDG Base Directory specification:
//   - $XDG_CACHE_HOME/ftagsd (if XDG_CACHE_HOME is set)
//   - ~/.cache/ftagsd (default)
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ftagsd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cache", "ftagsd")
	}
	return filepath.Join(home, ".cache", "ftagsd")
}

// rootHash derives a short, stable directory name from a project's root
// path, so two projects with the same base name but different roots
// don't collide under the cache directory.
func rootHash(root string) string {
	h := xxhash.Sum64String(filepath.Clean(root))
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 0; i < 16; i++ {
		buf[15-i] = hexDigits[(h>>(4*i))&0xf]
	}
	return string(buf)
}

// ProjectDir returns the per-project cache directory for root, e.g.
// $XDG_CACHE_HOME/ftagsd/project/<hash>.
func ProjectDir(root string) string {
	return filepath.Join(CacheDir(), "project", rootHash(root))
}

// ProjectDBPath returns the path of the serialized ProjectDB file for
// the project rooted at root.
func ProjectDBPath(root string) string {
	return filepath.Join(ProjectDir(root), databaseFileName)
}

// Lock is an exclusive-writer/shared-reader guard over one project's
// database file, following the teacher's embed.FileLock pattern built on
// gofrs/flock. Concurrent readers (query RPCs) don't need this lock;
// only the single writer that owns a database's update/save path does,
// matching §5's exclusive-writer concurrency model.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewLock creates a lock for the project database at dbPath. The lock
// file itself lives alongside it, suffixed ".lock".
func NewLock(dbPath string) *Lock {
	path := dbPath + ".lock"
	return &Lock{path: path, flock: flock.New(path)}
}

// Lock acquires the exclusive lock, blocking until it is available.
func (l *Lock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return ferrors.IOError("failed to create database directory", err)
	}
	if err := l.flock.Lock(); err != nil {
		return ferrors.IOError("failed to acquire database write lock", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *Lock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, ferrors.IOError("failed to create database directory", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, ferrors.IOError("failed to acquire database write lock", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call more than once.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return ferrors.IOError("failed to release database write lock", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file's path.
func (l *Lock) Path() string { return l.path }
