package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/dbfile"
	"github.com/0x8000-0000/ftagsd/internal/tags"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

func mustSerialize(t *testing.T, db *tags.ProjectDB) []byte {
	t.Helper()
	w := wire.NewBufferWriter()
	require.NoError(t, db.Serialize(w.Writer))
	return w.Bytes()
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	catalog, err := dbfile.OpenCatalog()
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })
	return NewManager(catalog)
}

func sampleDB(t *testing.T, name, root string) *tags.ProjectDB {
	t.Helper()
	db := tags.NewProjectDB(name, root)
	_, err := db.AddTranslationUnit(root+"/main.c", []tags.Record{})
	require.NoError(t, err)
	return db
}

func TestManager_Query_UnknownProjectFails(t *testing.T) {
	m := newTestManager(t)
	_, _, err := m.Query("nope", daemon.QuerySymbol, "", "foo", "", 0, 0)
	assert.Error(t, err)
}

func TestManager_Query_FindsRegisteredSymbol(t *testing.T) {
	m := newTestManager(t)
	root := t.TempDir()
	db := tags.NewProjectDB("demo", root)

	fileKey, err := db.FileNames.AddKey(root + "/main.c")
	require.NoError(t, err)
	symKey, err := db.Symbols.AddKey("widget_init")
	require.NoError(t, err)
	loc := tags.NewLocation(fileKey, 10, 1)
	record := tags.Record{Location: loc, SymbolNameKey: symKey}
	record.Attributes.SetDefinition(true)
	_, err = db.AddTranslationUnit(root+"/main.c", []tags.Record{record})
	require.NoError(t, err)

	require.NoError(t, m.Register(context.Background(), db))

	cs, found, err := m.Query("demo", daemon.QuerySymbol, "", "widget_init", "", 0, 0)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotNil(t, cs)
}

func TestManager_Query_NoResultsIsNotAnError(t *testing.T) {
	m := newTestManager(t)
	root := t.TempDir()
	db := sampleDB(t, "demo", root)
	require.NoError(t, m.Register(context.Background(), db))

	cs, found, err := m.Query("demo", daemon.QuerySymbol, "", "does_not_exist", "", 0, 0)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, cs)
}

func TestManager_SaveAndLoadDatabase_RoundTrips(t *testing.T) {
	m := newTestManager(t)
	root := t.TempDir()
	db := tags.NewProjectDB("demo", root)

	fileKey, err := db.FileNames.AddKey(root + "/main.c")
	require.NoError(t, err)
	symKey, err := db.Symbols.AddKey("widget_init")
	require.NoError(t, err)
	record := tags.Record{Location: tags.NewLocation(fileKey, 1, 1), SymbolNameKey: symKey}
	_, err = db.AddTranslationUnit(root+"/main.c", []tags.Record{record})
	require.NoError(t, err)

	require.NoError(t, m.Register(context.Background(), db))
	require.NoError(t, m.SaveDatabase("demo", ""))

	// Force the next resolve to reload from disk rather than the
	// in-memory registry.
	m.mu.Lock()
	delete(m.projects, "demo")
	m.mu.Unlock()

	require.NoError(t, m.LoadDatabase("demo", ""))

	cs, found, err := m.Query("demo", daemon.QuerySymbol, "", "widget_init", "", 0, 0)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotNil(t, cs)
}

func TestManager_QueryStatistics_ReportsCounts(t *testing.T) {
	m := newTestManager(t)
	root := t.TempDir()
	db := sampleDB(t, "demo", root)
	require.NoError(t, m.Register(context.Background(), db))

	stats, err := m.QueryStatistics("demo", "")
	require.NoError(t, err)
	assert.NotEmpty(t, stats)
}

func TestManager_UpdateTranslationUnit_MergesPayload(t *testing.T) {
	m := newTestManager(t)
	root := t.TempDir()
	db := tags.NewProjectDB("demo", root)
	require.NoError(t, m.Register(context.Background(), db))

	sub := tags.NewProjectDB("", "")
	fileKey, err := sub.FileNames.AddKey(root + "/extra.c")
	require.NoError(t, err)
	symKey, err := sub.Symbols.AddKey("extra_fn")
	require.NoError(t, err)
	record := tags.Record{Location: tags.NewLocation(fileKey, 2, 1), SymbolNameKey: symKey}
	_, err = sub.AddTranslationUnit(root+"/extra.c", []tags.Record{record})
	require.NoError(t, err)

	body := mustSerialize(t, sub)
	require.NoError(t, m.UpdateTranslationUnit("demo", "", root+"/extra.c", body))

	_, found, err := m.Query("demo", daemon.QuerySymbol, "", "extra_fn", "", 0, 0)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestManager_Watch_ReindexesOnFileChange(t *testing.T) {
	m := newTestManager(t)
	root := t.TempDir()
	path := filepath.Join(root, "main.c")
	require.NoError(t, os.WriteFile(path, []byte("int original(void) { return 0; }\n"), 0o644))

	db := tags.NewProjectDB("demo", root)
	require.NoError(t, m.Register(context.Background(), db))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx, "demo"))

	require.NoError(t, os.WriteFile(path, []byte("int added_later(void) { return 1; }\n"), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, found, err := m.Query("demo", daemon.QuerySymbol, "", "added_later", "", 0, 0)
		require.NoError(t, err)
		if found {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("timed out waiting for watcher to re-index changed file")
}
