package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x8000-0000/ftagsd/internal/wire"
)

func TestCursorSet_BuildAndInflate(t *testing.T) {
	db := NewProjectDB("proj", "/root")
	fileKey, err := db.FileNames.AddKey("/src/f.c")
	require.NoError(t, err)
	symKey, err := db.Symbols.AddKey("foo")
	require.NoError(t, err)
	nsKey, err := db.Namespaces.AddKey("ns")
	require.NoError(t, err)

	record := Record{
		SymbolNameKey:    symKey,
		NamespaceNameKey: nsKey,
		Location:         NewLocation(fileKey, 10, 5),
	}

	cs, err := BuildCursorSet(db, []Record{record})
	require.NoError(t, err)

	inflated := cs.Inflate()
	require.Len(t, inflated, 1)
	assert.Equal(t, "foo", inflated[0].Symbol)
	assert.Equal(t, "ns", inflated[0].Namespace)
	assert.Equal(t, "/src/f.c", inflated[0].File)
	assert.Equal(t, uint32(10), inflated[0].Line)
	assert.Equal(t, uint32(5), inflated[0].Column)
}

func TestCursorSet_SerializeDeserializeRoundTrip(t *testing.T) {
	db := NewProjectDB("proj", "/root")
	fileKey, err := db.FileNames.AddKey("/src/f.c")
	require.NoError(t, err)
	symKey, err := db.Symbols.AddKey("foo")
	require.NoError(t, err)

	cs, err := BuildCursorSet(db, []Record{{SymbolNameKey: symKey, Location: NewLocation(fileKey, 1, 1)}})
	require.NoError(t, err)

	bw := wire.NewBufferWriter()
	require.NoError(t, cs.Serialize(bw.Writer))

	r := wire.NewBufferReader(bw.Bytes())
	restored, err := DeserializeCursorSet(r)
	require.NoError(t, err)
	require.NoError(t, r.AssertEmpty())

	inflated := restored.Inflate()
	require.Len(t, inflated, 1)
	assert.Equal(t, "foo", inflated[0].Symbol)
	assert.Equal(t, "/src/f.c", inflated[0].File)
}

func TestCursorSet_DeserializeRejectsCorruptedBody(t *testing.T) {
	db := NewProjectDB("proj", "/root")
	fileKey, err := db.FileNames.AddKey("/src/f.c")
	require.NoError(t, err)
	symKey, err := db.Symbols.AddKey("foo")
	require.NoError(t, err)

	cs, err := BuildCursorSet(db, []Record{{SymbolNameKey: symKey, Location: NewLocation(fileKey, 1, 1)}})
	require.NoError(t, err)

	bw := wire.NewBufferWriter()
	require.NoError(t, cs.Serialize(bw.Writer))
	corrupted := bw.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	r := wire.NewBufferReader(corrupted)
	_, err = DeserializeCursorSet(r)
	assert.Error(t, err)
}
