// Package project implements daemon.RequestHandler against a set of
// named tags.ProjectDB instances, resolving a bare project name against
// an in-memory registry first and internal/dbfile's catalog second —
// the same "load on demand, keep what's hot in memory" role the
// teacher's embed store plays for its vector index.
package project

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/dbfile"
	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/tags"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// entry is one open project: its database plus the single-writer lock
// §5 requires around merges, updates, and saves. Queries only take the
// read lock; writes take the write lock, matching the catalog's
// exclusive-writer/shared-reader model.
type entry struct {
	mu sync.RWMutex
	db *tags.ProjectDB
}

// Manager owns every open ProjectDB and the catalog that remembers
// where each one's on-disk copy lives.
type Manager struct {
	catalog *dbfile.Catalog

	mu       sync.Mutex
	projects map[string]*entry
}

// NewManager creates a Manager backed by catalog.
func NewManager(catalog *dbfile.Catalog) *Manager {
	return &Manager{
		catalog:  catalog,
		projects: make(map[string]*entry),
	}
}

// Register adds a freshly built ProjectDB to the in-memory registry and
// records it in the catalog, for cmd/ftagsd index to hand off a
// just-indexed project without a save/load round trip.
func (m *Manager) Register(ctx context.Context, db *tags.ProjectDB) error {
	m.mu.Lock()
	m.projects[db.Name] = &entry{db: db}
	m.mu.Unlock()

	return m.catalog.Upsert(ctx, dbfile.ProjectEntry{
		Name:      db.Name,
		Root:      db.Root,
		DBPath:    dbfile.ProjectDBPath(db.Root),
		UpdatedAt: time.Now(),
	})
}

// resolve returns the open entry for projectName, loading it from disk
// via the catalog if it isn't already in memory.
func (m *Manager) resolve(ctx context.Context, projectName string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.projects[projectName]
	m.mu.Unlock()
	if ok {
		return e, nil
	}

	catalogEntry, err := m.catalog.Get(ctx, projectName)
	if err != nil {
		return nil, err
	}

	db, err := loadProjectDB(catalogEntry.DBPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.projects[projectName]; ok {
		return existing, nil
	}
	e = &entry{db: db}
	m.projects[projectName] = e
	return e, nil
}

func loadProjectDB(path string) (*tags.ProjectDB, error) {
	r, closeFn, err := wire.NewFileReader(path)
	if err != nil {
		return nil, ferrors.IOError("failed to open database file "+path, err)
	}
	defer closeFn()

	db, err := tags.DeserializeProjectDB(r)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeDeserializationMismatch, err)
	}
	return db, nil
}

// Query runs one of the §6.2 lookup kinds against projectName's
// database and packages whatever it finds into a CursorSet the server
// can serialize straight back to the wire.
func (m *Manager) Query(projectName string, qt daemon.QueryType, qualifier, symbolName, fileName string, line, column uint32) (*tags.CursorSet, bool, error) {
	e, err := m.resolve(context.Background(), projectName)
	if err != nil {
		return nil, false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	switch qt {
	case daemon.QuerySymbol:
		records := e.db.FindSymbol(symbolName)
		if len(records) == 0 {
			return nil, false, nil
		}
		cs, err := tags.BuildCursorSet(e.db, records)
		return cs, err == nil, err

	case daemon.QueryDefinition:
		records := e.db.FindDefinition(symbolName)
		if len(records) == 0 {
			return nil, false, nil
		}
		cs, err := tags.BuildCursorSet(e.db, records)
		return cs, err == nil, err

	case daemon.QueryDeclaration:
		records := e.db.FindDeclaration(symbolName)
		if len(records) == 0 {
			return nil, false, nil
		}
		cs, err := tags.BuildCursorSet(e.db, records)
		return cs, err == nil, err

	case daemon.QueryReference:
		records := e.db.FindReference(symbolName)
		if len(records) == 0 {
			return nil, false, nil
		}
		cs, err := tags.BuildCursorSet(e.db, records)
		return cs, err == nil, err

	case daemon.QueryIdentify:
		records, ok := e.db.IdentifySymbol(fileName, line, column)
		if !ok {
			return nil, false, nil
		}
		cs, err := tags.BuildCursorSet(e.db, records)
		return cs, err == nil, err

	case daemon.QueryIdentifyExtended:
		result, ok := e.db.IdentifySymbolExtended(fileName, line, column)
		if !ok {
			return nil, false, nil
		}
		records := append(append([]tags.Record{}, result.Primary...), result.Related...)
		cs, err := tags.BuildCursorSet(e.db, records)
		return cs, err == nil, err

	default:
		return nil, false, ferrors.ValidationError("unrecognized query type", nil)
	}
}

// DumpTranslationUnit returns every record belonging to fileName's
// translation unit.
func (m *Manager) DumpTranslationUnit(projectName, fileName string) (*tags.CursorSet, error) {
	e, err := m.resolve(context.Background(), projectName)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	records, err := e.db.DumpTranslationUnit(fileName)
	if err != nil {
		return nil, err
	}
	return tags.BuildCursorSet(e.db, records)
}

// UpdateTranslationUnit merges a serialized sub-project (built by
// internal/indexer for a single re-parsed file) into projectName's
// database, replacing any existing translation unit for that file.
func (m *Manager) UpdateTranslationUnit(projectName, directoryName, fileName string, payload []byte) error {
	ctx := context.Background()
	e, err := m.resolve(ctx, projectName)
	if err != nil {
		return err
	}

	sub, err := tags.DeserializeProjectDB(wire.NewBufferReader(payload))
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeDeserializationMismatch, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.db.UpdateFrom(sub); err != nil {
		return err
	}

	return m.catalog.Upsert(ctx, dbfile.ProjectEntry{
		Name:      e.db.Name,
		Root:      e.db.Root,
		DBPath:    dbfile.ProjectDBPath(e.db.Root),
		UpdatedAt: time.Now(),
	})
}

// QueryStatistics reports basic counts for projectName; group is
// currently unused, reserved for a future per-file or per-namespace
// breakdown.
func (m *Manager) QueryStatistics(projectName, group string) ([]string, error) {
	e, err := m.resolve(context.Background(), projectName)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return []string{
		fmtStat("records", e.db.Spans.GetRecordCount()),
		fmtStat("symbols", e.db.Spans.GetSymbolCount()),
		fmtStat("functions", len(e.db.GetFunctions())),
		fmtStat("classes", len(e.db.GetClasses())),
		fmtStat("global_variables", len(e.db.GetGlobalVariables())),
	}, nil
}

// AnalyzeData reports the same project-health remarks QueryStatistics
// does; kept as a distinct command so a future pass can add heavier,
// opt-in analysis (e.g. unresolved-reference detection) without
// changing QUERY_STATISTICS' cheap-and-always-on contract.
func (m *Manager) AnalyzeData(projectName, group string) ([]string, error) {
	return m.QueryStatistics(projectName, group)
}

// SaveDatabase serializes projectName's database to directoryName (or
// its default cache path) under the project's exclusive write lock.
func (m *Manager) SaveDatabase(projectName, directoryName string) error {
	ctx := context.Background()
	e, err := m.resolve(ctx, projectName)
	if err != nil {
		return err
	}

	path := directoryName
	if path == "" {
		path = dbfile.ProjectDBPath(e.db.Root)
	}

	lock := dbfile.NewLock(path)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	e.mu.RLock()
	w, closeFn, err := wire.NewFileWriter(path)
	if err != nil {
		e.mu.RUnlock()
		return ferrors.IOError("failed to create database file "+path, err)
	}
	serializeErr := e.db.Serialize(w)
	e.mu.RUnlock()
	if closeErr := closeFn(); serializeErr == nil {
		serializeErr = closeErr
	}
	if serializeErr != nil {
		return ferrors.IOError("failed to serialize database", serializeErr)
	}

	return m.catalog.Upsert(ctx, dbfile.ProjectEntry{
		Name:      e.db.Name,
		Root:      e.db.Root,
		DBPath:    path,
		UpdatedAt: time.Now(),
	})
}

// LoadDatabase reads projectName's database from directoryName (or its
// catalog-recorded path) and replaces whatever copy is currently in
// memory.
func (m *Manager) LoadDatabase(projectName, directoryName string) error {
	ctx := context.Background()

	path := directoryName
	if path == "" {
		catalogEntry, err := m.catalog.Get(ctx, projectName)
		if err != nil {
			return err
		}
		path = catalogEntry.DBPath
	}

	db, err := loadProjectDB(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.projects[projectName] = &entry{db: db}
	m.mu.Unlock()

	return m.catalog.Upsert(ctx, dbfile.ProjectEntry{
		Name:      db.Name,
		Root:      db.Root,
		DBPath:    path,
		UpdatedAt: time.Now(),
	})
}

func fmtStat(label string, n int) string {
	return label + ": " + strconv.Itoa(n)
}
