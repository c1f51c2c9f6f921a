package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x8000-0000/ftagsd/internal/wire"
)

func TestProjectDB_SerializeDeserializeRoundTrip(t *testing.T) {
	db := buildWithHeader(t, "/src/a.c", "/src/h.h", []string{"h1", "h2"}, []string{"a1"})

	bw := wire.NewBufferWriter()
	require.NoError(t, db.Serialize(bw.Writer))

	r := wire.NewBufferReader(bw.Bytes())
	restored, err := DeserializeProjectDB(r)
	require.NoError(t, err)
	require.NoError(t, r.AssertEmpty())

	assert.Equal(t, db.Name, restored.Name)
	assert.Equal(t, db.Root, restored.Root)
	assert.Equal(t, db.Spans.GetRecordCount(), restored.Spans.GetRecordCount())

	dump, err := restored.DumpTranslationUnit("/src/a.c")
	require.NoError(t, err)
	assert.Len(t, dump, 3)
}

func TestProjectDB_DumpTranslationUnit_UnknownFile(t *testing.T) {
	db := NewProjectDB("proj", "/root")
	_, err := db.DumpTranslationUnit("/nope.c")
	assert.Error(t, err)
}

func TestProjectDB_AddTranslationUnit_ReplacesExisting(t *testing.T) {
	db := NewProjectDB("proj", "/root")
	fileKey, err := db.FileNames.AddKey("/src/a.c")
	require.NoError(t, err)
	symKey, err := db.Symbols.AddKey("old")
	require.NoError(t, err)

	_, err = db.AddTranslationUnit("/src/a.c", []Record{{SymbolNameKey: symKey, Location: NewLocation(fileKey, 1, 1)}})
	require.NoError(t, err)
	assert.Equal(t, 1, db.Spans.GetRecordCount())

	newSymKey, err := db.Symbols.AddKey("new")
	require.NoError(t, err)
	_, err = db.AddTranslationUnit("/src/a.c", []Record{{SymbolNameKey: newSymKey, Location: NewLocation(fileKey, 2, 2)}})
	require.NoError(t, err)

	assert.Equal(t, 1, db.Spans.GetRecordCount(), "replacing a TU must release its old spans")
	dump, err := db.DumpTranslationUnit("/src/a.c")
	require.NoError(t, err)
	require.Len(t, dump, 1)
	assert.Equal(t, newSymKey, dump[0].SymbolNameKey)
}

func TestProjectDB_UpdateFrom_ReplacesExistingUnit(t *testing.T) {
	p1 := buildWithHeader(t, "/src/a.c", "/src/h.h", []string{"h1"}, []string{"old"})
	p2 := buildWithHeader(t, "/src/a.c", "/src/h.h", []string{"h1"}, []string{"new"})

	require.NoError(t, p1.UpdateFrom(p2))

	dump, err := p1.DumpTranslationUnit("/src/a.c")
	require.NoError(t, err)

	var names []string
	for _, r := range dump {
		s, _ := p1.Symbols.GetString(r.SymbolNameKey)
		names = append(names, s)
	}
	assert.Contains(t, names, "new")
	assert.NotContains(t, names, "old")
}
