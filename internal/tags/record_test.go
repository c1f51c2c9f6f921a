package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocation_PackUnpack(t *testing.T) {
	loc := NewLocation(7, 1234, 56)
	assert.Equal(t, uint32(1234), loc.Line())
	assert.Equal(t, uint32(56), loc.Column())
}

func TestLocation_ClampsOverflow(t *testing.T) {
	loc := NewLocation(0, 1<<21, 1<<13)
	assert.Equal(t, uint32(locationMaxLine), loc.Line())
	assert.Equal(t, uint32(locationMaxColumn), loc.Column())
}

func TestAttributes_TypeRoundTrip(t *testing.T) {
	var a Attributes
	a.SetType(FunctionDeclaration)
	assert.Equal(t, FunctionDeclaration, a.Type())

	a.SetDeclaration(true)
	a.SetGlobal(true)
	assert.True(t, a.IsDeclaration())
	assert.True(t, a.IsGlobal())
	assert.False(t, a.IsDefinition())

	// setting a flag must not disturb the packed type field.
	assert.Equal(t, FunctionDeclaration, a.Type())
}

func TestAttributes_LevelIndependentOfFlags(t *testing.T) {
	var a Attributes
	a.SetType(ClassDeclaration)
	a.SetMember(true)
	a.SetLevel(3)

	assert.Equal(t, ClassDeclaration, a.Type())
	assert.True(t, a.IsMember())
	assert.Equal(t, uint8(3), a.Level())
}

func TestSymbolType_String(t *testing.T) {
	assert.Equal(t, "FunctionDeclaration", FunctionDeclaration.String())
	assert.Equal(t, "MacroDefinition", MacroDefinition.String())
	assert.Contains(t, SymbolType(9999).String(), "9999")
}
