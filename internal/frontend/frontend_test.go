package frontend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x8000-0000/ftagsd/internal/pathtab"
	"github.com/0x8000-0000/ftagsd/internal/strtab"
	"github.com/0x8000-0000/ftagsd/internal/tags"
)

func newFrontend() *Frontend {
	return New(strtab.New(), strtab.New(), pathtab.New())
}

func TestFrontend_ParseFile_FindsFunctionDefinition(t *testing.T) {
	source := []byte(`
int add(int a, int b) {
    return a + b;
}
`)
	f := newFrontend()
	defer f.Close()

	records, err := f.ParseFile(context.Background(), "/src/add.c", source)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	var found bool
	for _, r := range records {
		if r.Attributes.Type() == tags.FunctionDeclaration && r.Attributes.IsDefinition() {
			name, _ := f.Symbols.GetString(r.SymbolNameKey)
			if name == "add" {
				found = true
			}
		}
	}
	assert.True(t, found, "expected to find a definition record for 'add'")
}

func TestFrontend_ParseFile_FindsStructAndTypedef(t *testing.T) {
	source := []byte(`
struct point {
    int x;
    int y;
};

typedef struct point Point;
`)
	f := newFrontend()
	defer f.Close()

	records, err := f.ParseFile(context.Background(), "/src/point.h", source)
	require.NoError(t, err)

	var sawStruct, sawTypedef, sawField bool
	for _, r := range records {
		name, _ := f.Symbols.GetString(r.SymbolNameKey)
		switch r.Attributes.Type() {
		case tags.StructDeclaration:
			if name == "point" {
				sawStruct = true
			}
		case tags.TypedefDeclaration:
			if name == "Point" {
				sawTypedef = true
			}
		case tags.FieldDeclaration:
			if name == "x" || name == "y" {
				sawField = true
			}
		}
	}
	assert.True(t, sawStruct)
	assert.True(t, sawTypedef)
	assert.True(t, sawField)
}

func TestFrontend_ParseFile_FindsNamespaceAndMacro(t *testing.T) {
	source := []byte(`
#define MAX_SIZE 128

namespace app {
    int counter;
}
`)
	f := newFrontend()
	defer f.Close()

	records, err := f.ParseFile(context.Background(), "/src/app.cc", source)
	require.NoError(t, err)

	var sawMacro, sawNamespace bool
	for _, r := range records {
		name, _ := f.Symbols.GetString(r.SymbolNameKey)
		switch r.Attributes.Type() {
		case tags.MacroDefinition:
			if name == "MAX_SIZE" {
				sawMacro = true
			}
		case tags.Namespace:
			if name == "app" {
				sawNamespace = true
			}
		}
	}
	assert.True(t, sawMacro)
	assert.True(t, sawNamespace)
}
