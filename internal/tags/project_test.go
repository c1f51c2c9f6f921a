package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectDB_S5_IdentifySymbol(t *testing.T) {
	// spec S5: a TU has records at (F,10,5) declaration and (F,20,5)
	// definition of symbol S. identifySymbol(F,10,6) returns the
	// declaration; identifySymbol(F,20,6) returns the definition;
	// identifySymbolExtended(F,10,6) returns the declaration as primary
	// and, through the declaration's Definition location (F,20,5), the
	// definition as related.
	db := NewProjectDB("proj", "/root")

	fileKey, err := db.FileNames.AddKey("/src/f.c")
	require.NoError(t, err)

	symKey, err := db.Symbols.AddKey("S")
	require.NoError(t, err)

	var declAttrs Attributes
	declAttrs.SetType(FunctionDeclaration)
	declAttrs.SetDeclaration(true)
	declRecord := Record{
		SymbolNameKey: symKey,
		Location:      NewLocation(fileKey, 10, 5),
		Definition:    NewLocation(fileKey, 20, 5),
		Attributes:    declAttrs,
	}

	var defAttrs Attributes
	defAttrs.SetType(FunctionDeclaration)
	defAttrs.SetDefinition(true)
	defRecord := Record{
		SymbolNameKey: symKey,
		Location:      NewLocation(fileKey, 20, 5),
		Attributes:    defAttrs,
	}

	_, err = db.AddTranslationUnit("/src/f.c", []Record{declRecord, defRecord})
	require.NoError(t, err)

	found, ok := db.IdentifySymbol("/src/f.c", 10, 6)
	require.True(t, ok)
	require.Len(t, found, 1)
	assert.True(t, found[0].Attributes.IsDeclaration())

	found, ok = db.IdentifySymbol("/src/f.c", 20, 6)
	require.True(t, ok)
	require.Len(t, found, 1)
	assert.True(t, found[0].Attributes.IsDefinition())

	ext, ok := db.IdentifySymbolExtended("/src/f.c", 10, 6)
	require.True(t, ok)
	require.Len(t, ext.Primary, 1)
	assert.True(t, ext.Primary[0].Attributes.IsDeclaration())
	require.Len(t, ext.Related, 1)
	assert.True(t, ext.Related[0].Attributes.IsDefinition())
}

func TestProjectDB_IdentifySymbol_TiedLocationReturnsAllRecords(t *testing.T) {
	// spec §4.4: "If multiple records have identical locations
	// (declaration + definition at the same point), return all of
	// them." A header-only inline function is a common case where the
	// declaration and definition coincide.
	db := NewProjectDB("proj", "/root")

	fileKey, err := db.FileNames.AddKey("/src/f.h")
	require.NoError(t, err)
	symKey, err := db.Symbols.AddKey("inlineFn")
	require.NoError(t, err)

	var declAttrs, defAttrs Attributes
	declAttrs.SetDeclaration(true)
	defAttrs.SetDefinition(true)

	loc := NewLocation(fileKey, 5, 1)
	declRecord := Record{SymbolNameKey: symKey, Location: loc, Attributes: declAttrs}
	defRecord := Record{SymbolNameKey: symKey, Location: loc, Attributes: defAttrs}

	_, err = db.AddTranslationUnit("/src/f.h", []Record{declRecord, defRecord})
	require.NoError(t, err)

	found, ok := db.IdentifySymbol("/src/f.h", 5, 1)
	require.True(t, ok)
	require.Len(t, found, 2, "both records tied at the same location must be returned")

	var sawDecl, sawDef bool
	for _, r := range found {
		sawDecl = sawDecl || r.Attributes.IsDeclaration()
		sawDef = sawDef || r.Attributes.IsDefinition()
	}
	assert.True(t, sawDecl)
	assert.True(t, sawDef)
}

func TestProjectDB_FindDefinitionDeclarationReference(t *testing.T) {
	db := NewProjectDB("proj", "/root")
	fileKey, err := db.FileNames.AddKey("/src/f.c")
	require.NoError(t, err)
	symKey, err := db.Symbols.AddKey("foo")
	require.NoError(t, err)

	var declAttrs, defAttrs, useAttrs Attributes
	declAttrs.SetDeclaration(true)
	defAttrs.SetDefinition(true)
	useAttrs.SetUse(true)

	records := []Record{
		{SymbolNameKey: symKey, Location: NewLocation(fileKey, 1, 1), Attributes: declAttrs},
		{SymbolNameKey: symKey, Location: NewLocation(fileKey, 2, 1), Attributes: defAttrs},
		{SymbolNameKey: symKey, Location: NewLocation(fileKey, 3, 1), Attributes: useAttrs},
	}
	_, err = db.AddTranslationUnit("/src/f.c", records)
	require.NoError(t, err)

	assert.Len(t, db.FindDeclaration("foo"), 1)
	assert.Len(t, db.FindDefinition("foo"), 1)
	assert.Len(t, db.FindReference("foo"), 1)
	assert.Empty(t, db.FindDeclaration("bar"))
}

func buildWithHeader(t *testing.T, mainFile, headerFile string, headerSymbols, mainSymbols []string) *ProjectDB {
	t.Helper()
	db := NewProjectDB("proj", "/root")

	headerKey, err := db.FileNames.AddKey(headerFile)
	require.NoError(t, err)

	var records []Record
	for i, s := range headerSymbols {
		symKey, err := db.Symbols.AddKey(s)
		require.NoError(t, err)
		records = append(records, Record{SymbolNameKey: symKey, Location: NewLocation(headerKey, uint32(i+1), 1)})
	}

	mainKey, err := db.FileNames.AddKey(mainFile)
	require.NoError(t, err)
	for i, s := range mainSymbols {
		symKey, err := db.Symbols.AddKey(s)
		require.NoError(t, err)
		records = append(records, Record{SymbolNameKey: symKey, Location: NewLocation(mainKey, uint32(i+1), 1)})
	}

	_, err = db.AddTranslationUnit(mainFile, records)
	require.NoError(t, err)
	return db
}

func TestProjectDB_S6_MergeAndDedup(t *testing.T) {
	// spec S6: P1 parses a.c including h.h (5 records in h.h, 3 in a.c).
	// P2 parses b.c including the same h.h bytes. P1.mergeFrom(P2): the
	// record slab holds 5 + 3 + 3 = 11 records, not 16, because the
	// shared h.h span is deduped and merely gains a second reference.
	headerSymbols := []string{"h1", "h2", "h3", "h4", "h5"}

	p1 := buildWithHeader(t, "/src/a.c", "/src/h.h", headerSymbols, []string{"a1", "a2", "a3"})
	p2 := buildWithHeader(t, "/src/b.c", "/src/h.h", headerSymbols, []string{"b1", "b2", "b3"})

	require.NoError(t, p1.MergeFrom(p2))

	assert.Equal(t, 11, p1.Spans.GetRecordCount())

	records := p1.FindSymbol("h1")
	require.Len(t, records, 1)
	assert.Equal(t, "/src/h.h", p1.FileNames.GetPath(records[0].Location.FileNameKey))
}
