package tags

import (
	"github.com/0x8000-0000/ftagsd/internal/pathtab"
	"github.com/0x8000-0000/ftagsd/internal/strtab"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// Location pins a symbol to a position in a file. Line and column are
// packed into a single 32-bit word (20 bits line, 12 bits column) to
// keep a Record small; callers never construct packedLineColumn by hand,
// they go through NewLocation/Line/Column.
type Location struct {
	FileNameKey pathtab.Key

	packedLineColumn uint32
}

const (
	locationLineBits   = 20
	locationColumnBits = 12
	locationColumnMask = 1<<locationColumnBits - 1
	locationMaxLine    = 1<<locationLineBits - 1
	locationMaxColumn  = 1<<locationColumnBits - 1
)

// NewLocation packs line/column, clamping either that overflows its
// field width rather than silently wrapping.
func NewLocation(fileNameKey pathtab.Key, line, column uint32) Location {
	if line > locationMaxLine {
		line = locationMaxLine
	}
	if column > locationMaxColumn {
		column = locationMaxColumn
	}
	return Location{
		FileNameKey:      fileNameKey,
		packedLineColumn: line<<locationColumnBits | column,
	}
}

// Line returns the 1-based line number.
func (l Location) Line() uint32 { return l.packedLineColumn >> locationColumnBits }

// Column returns the 1-based column number.
func (l Location) Column() uint32 { return l.packedLineColumn & locationColumnMask }

// Attributes packs a Record's symbol kind, boolean flags, and nesting
// level into two machine words, mirroring a C bitfield: type:10 plus 18
// one-bit flags fit in the first 32 bits, level:8 and free bits fill out
// the second 32.
type Attributes struct {
	flags uint32 // bits 0-9: SymbolType, bits 10-27: 18 boolean flags
	level uint32 // bits 0-7: nesting level, bits 8-31: reserved
}

const (
	attrTypeBits = 10
	attrTypeMask = 1<<attrTypeBits - 1
)

// Flag bit positions within Attributes.flags, starting right after the
// 10-bit SymbolType field.
const (
	flagDeclaration = attrTypeBits + iota
	flagDefinition
	flagUse
	flagOverload
	flagReference
	flagExpression
	flagArray
	flagConstant
	flagGlobal
	flagMember
	flagCast
	flagParameter
	flagConstructed
	flagDestructed
	flagThrown
	flagFromMainFile
	flagDefinedInMainFile
	flagNamespaceRef
)

func (a Attributes) bit(pos uint) bool    { return a.flags&(1<<pos) != 0 }
func (a *Attributes) setBit(pos uint, v bool) {
	if v {
		a.flags |= 1 << pos
	} else {
		a.flags &^= 1 << pos
	}
}

// Type returns the packed SymbolType.
func (a Attributes) Type() SymbolType { return SymbolType(a.flags & attrTypeMask) }

// SetType sets the packed SymbolType, leaving every flag bit untouched.
func (a *Attributes) SetType(t SymbolType) {
	a.flags = a.flags&^attrTypeMask | uint32(t)&attrTypeMask
}

func (a Attributes) IsDeclaration() bool        { return a.bit(flagDeclaration) }
func (a *Attributes) SetDeclaration(v bool)     { a.setBit(flagDeclaration, v) }
func (a Attributes) IsDefinition() bool         { return a.bit(flagDefinition) }
func (a *Attributes) SetDefinition(v bool)      { a.setBit(flagDefinition, v) }
func (a Attributes) IsUse() bool                { return a.bit(flagUse) }
func (a *Attributes) SetUse(v bool)             { a.setBit(flagUse, v) }
func (a Attributes) IsOverload() bool           { return a.bit(flagOverload) }
func (a *Attributes) SetOverload(v bool)        { a.setBit(flagOverload, v) }
func (a Attributes) IsReference() bool          { return a.bit(flagReference) }
func (a *Attributes) SetReference(v bool)       { a.setBit(flagReference, v) }
func (a Attributes) IsExpression() bool         { return a.bit(flagExpression) }
func (a *Attributes) SetExpression(v bool)      { a.setBit(flagExpression, v) }
func (a Attributes) IsArray() bool              { return a.bit(flagArray) }
func (a *Attributes) SetArray(v bool)           { a.setBit(flagArray, v) }
func (a Attributes) IsConstant() bool           { return a.bit(flagConstant) }
func (a *Attributes) SetConstant(v bool)        { a.setBit(flagConstant, v) }
func (a Attributes) IsGlobal() bool             { return a.bit(flagGlobal) }
func (a *Attributes) SetGlobal(v bool)          { a.setBit(flagGlobal, v) }
func (a Attributes) IsMember() bool             { return a.bit(flagMember) }
func (a *Attributes) SetMember(v bool)          { a.setBit(flagMember, v) }
func (a Attributes) IsCast() bool               { return a.bit(flagCast) }
func (a *Attributes) SetCast(v bool)            { a.setBit(flagCast, v) }
func (a Attributes) IsParameter() bool          { return a.bit(flagParameter) }
func (a *Attributes) SetParameter(v bool)       { a.setBit(flagParameter, v) }
func (a Attributes) IsConstructed() bool        { return a.bit(flagConstructed) }
func (a *Attributes) SetConstructed(v bool)     { a.setBit(flagConstructed, v) }
func (a Attributes) IsDestructed() bool         { return a.bit(flagDestructed) }
func (a *Attributes) SetDestructed(v bool)      { a.setBit(flagDestructed, v) }
func (a Attributes) IsThrown() bool             { return a.bit(flagThrown) }
func (a *Attributes) SetThrown(v bool)          { a.setBit(flagThrown, v) }
func (a Attributes) IsFromMainFile() bool       { return a.bit(flagFromMainFile) }
func (a *Attributes) SetFromMainFile(v bool)    { a.setBit(flagFromMainFile, v) }
func (a Attributes) IsDefinedInMainFile() bool  { return a.bit(flagDefinedInMainFile) }
func (a *Attributes) SetDefinedInMainFile(v bool) { a.setBit(flagDefinedInMainFile, v) }
func (a Attributes) IsNamespaceRef() bool       { return a.bit(flagNamespaceRef) }
func (a *Attributes) SetNamespaceRef(v bool)    { a.setBit(flagNamespaceRef, v) }

// Level returns the symbol's nesting level (namespace/class depth).
func (a Attributes) Level() uint8 { return uint8(a.level & 0xff) }

// SetLevel sets the symbol's nesting level.
func (a *Attributes) SetLevel(level uint8) { a.level = a.level&^0xff | uint32(level) }

// Record is the indexed fact about one symbol occurrence: its name, the
// namespace it lives in, where it was seen, where it is defined (if
// known yet), and its packed attributes. It is kept small and
// fixed-size so a RecordSpan can store many of them contiguously in a
// Slab Store.
type Record struct {
	SymbolNameKey    strtab.Key
	NamespaceNameKey strtab.Key
	Location         Location
	Definition       Location
	Attributes       Attributes
}

func uint32ToStrtabKey(v uint32) strtab.Key   { return strtab.Key(v) }
func uint32ToPathtabKey(v uint32) pathtab.Key { return pathtab.Key(v) }

// writeRecord encodes a single Record field by field so the wire format
// does not depend on in-memory struct layout.
func writeRecord(w *wire.Writer, r Record) error {
	if err := w.WriteUint32(uint32(r.SymbolNameKey)); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(r.NamespaceNameKey)); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(r.Location.FileNameKey)); err != nil {
		return err
	}
	if err := w.WriteUint32(r.Location.packedLineColumn); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(r.Definition.FileNameKey)); err != nil {
		return err
	}
	if err := w.WriteUint32(r.Definition.packedLineColumn); err != nil {
		return err
	}
	if err := w.WriteUint32(r.Attributes.flags); err != nil {
		return err
	}
	return w.WriteUint32(r.Attributes.level)
}

// readRecord is the inverse of writeRecord.
func readRecord(r *wire.Reader) (Record, error) {
	symbolNameKey, err := r.ReadUint32()
	if err != nil {
		return Record{}, err
	}
	namespaceNameKey, err := r.ReadUint32()
	if err != nil {
		return Record{}, err
	}
	locFile, err := r.ReadUint32()
	if err != nil {
		return Record{}, err
	}
	locPacked, err := r.ReadUint32()
	if err != nil {
		return Record{}, err
	}
	defFile, err := r.ReadUint32()
	if err != nil {
		return Record{}, err
	}
	defPacked, err := r.ReadUint32()
	if err != nil {
		return Record{}, err
	}
	flags, err := r.ReadUint32()
	if err != nil {
		return Record{}, err
	}
	level, err := r.ReadUint32()
	if err != nil {
		return Record{}, err
	}

	return Record{
		SymbolNameKey:    uint32ToStrtabKey(symbolNameKey),
		NamespaceNameKey: uint32ToStrtabKey(namespaceNameKey),
		Location: Location{
			FileNameKey:      uint32ToPathtabKey(locFile),
			packedLineColumn: locPacked,
		},
		Definition: Location{
			FileNameKey:      uint32ToPathtabKey(defFile),
			packedLineColumn: defPacked,
		},
		Attributes: Attributes{
			flags: flags,
			level: level,
		},
	}, nil
}
