package tags

import (
	"fmt"

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/pathtab"
	"github.com/0x8000-0000/ftagsd/internal/strtab"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// ProjectDB is the top-level persistent index for one project: its
// interned symbol/namespace/file-name tables, the RecordSpanManager
// holding every parsed record, and the ordered list of translation
// units that were indexed into it.
type ProjectDB struct {
	Name string
	Root string

	Symbols    *strtab.Table
	Namespaces *strtab.Table
	FileNames  *pathtab.Table

	Spans *RecordSpanManager

	units     map[pathtab.Key]*TranslationUnit
	unitOrder []pathtab.Key
}

// NewProjectDB creates an empty database rooted at root.
func NewProjectDB(name, root string) *ProjectDB {
	return &ProjectDB{
		Name:       name,
		Root:       root,
		Symbols:    strtab.New(),
		Namespaces: strtab.New(),
		FileNames:  pathtab.New(),
		Spans:      NewRecordSpanManager(),
		units:      make(map[pathtab.Key]*TranslationUnit),
	}
}

// AddTranslationUnit indexes records parsed from mainFile, replacing any
// prior unit for the same file (see UpdateFrom for the cross-database
// equivalent).
func (p *ProjectDB) AddTranslationUnit(mainFile string, records []Record) (*TranslationUnit, error) {
	mainFileKey, err := p.FileNames.AddKey(mainFile)
	if err != nil {
		return nil, err
	}

	if existing, ok := p.units[mainFileKey]; ok {
		existing.Release(p.Spans)
		delete(p.units, mainFileKey)
		p.unitOrder = removePathKey(p.unitOrder, mainFileKey)
	}

	tu := NewTranslationUnit(mainFileKey)
	if err := tu.BuildSpans(p.Spans, records); err != nil {
		return nil, err
	}
	p.units[mainFileKey] = tu
	p.unitOrder = append(p.unitOrder, mainFileKey)
	return tu, nil
}

func removePathKey(keys []pathtab.Key, key pathtab.Key) []pathtab.Key {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

// DumpTranslationUnit returns every record belonging to the unit
// indexed under mainFile.
func (p *ProjectDB) DumpTranslationUnit(mainFile string) ([]Record, error) {
	mainFileKey := p.FileNames.GetKey(mainFile)
	if mainFileKey == pathtab.InvalidKey {
		return nil, ferrors.UnknownFileError(mainFile)
	}
	tu, ok := p.units[mainFileKey]
	if !ok {
		return nil, ferrors.UnknownFileError(mainFile)
	}
	return tu.CopyRecords(p.Spans), nil
}

// FindSymbol returns every record whose symbol name matches name.
func (p *ProjectDB) FindSymbol(name string) []Record {
	key := p.Symbols.GetKey(name)
	if key == strtab.InvalidKey {
		return nil
	}
	var out []Record
	p.Spans.ForEachRecordWithSymbol(key, func(r Record) { out = append(out, r) })
	return out
}

// FindDefinition returns the records for name that are marked as a
// definition.
func (p *ProjectDB) FindDefinition(name string) []Record {
	return filterRecords(p.FindSymbol(name), func(r Record) bool { return r.Attributes.IsDefinition() })
}

// FindDeclaration returns the records for name that are marked as a
// declaration.
func (p *ProjectDB) FindDeclaration(name string) []Record {
	return filterRecords(p.FindSymbol(name), func(r Record) bool { return r.Attributes.IsDeclaration() })
}

// FindReference returns the records for name that are marked as a use.
func (p *ProjectDB) FindReference(name string) []Record {
	return filterRecords(p.FindSymbol(name), func(r Record) bool { return r.Attributes.IsUse() })
}

func filterRecords(records []Record, keep func(Record) bool) []Record {
	var out []Record
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// IdentifySymbol returns every record at the closest location at or
// before (file, line, column) — the usual "what's under the cursor"
// query from an editor. More than one record can come back when a
// declaration and a definition share the exact same location.
func (p *ProjectDB) IdentifySymbol(file string, line, column uint32) ([]Record, bool) {
	fileKey := p.FileNames.GetKey(file)
	if fileKey == pathtab.InvalidKey {
		return nil, false
	}
	return p.Spans.FindClosestRecord(fileKey, line, column)
}

// IdentifyResult is the outcome of IdentifySymbolExtended: every record
// at the query location, plus the record(s) actually sitting at its
// definition site, when that is a distinct occurrence (e.g. the cursor
// sits on a declaration and the definition lives elsewhere).
type IdentifyResult struct {
	Primary []Record
	Related []Record
}

// IdentifySymbolExtended behaves like IdentifySymbol, additionally
// resolving the records found at the first primary record's definition
// location so a caller can jump straight from a use or declaration to
// its definition without a second round trip.
func (p *ProjectDB) IdentifySymbolExtended(file string, line, column uint32) (IdentifyResult, bool) {
	primary, ok := p.IdentifySymbol(file, line, column)
	if !ok {
		return IdentifyResult{}, false
	}

	result := IdentifyResult{Primary: primary}
	basis := primary[0]
	if basis.Definition.FileNameKey == pathtab.InvalidKey {
		return result, true
	}

	for _, r := range p.FindSymbol(mustSymbolName(p, basis.SymbolNameKey)) {
		if r.Location.FileNameKey == basis.Definition.FileNameKey &&
			r.Location.packedLineColumn == basis.Definition.packedLineColumn {
			result.Related = append(result.Related, r)
		}
	}
	return result, true
}

func mustSymbolName(p *ProjectDB, key strtab.Key) string {
	name, _ := p.Symbols.GetString(key)
	return name
}

func (p *ProjectDB) recordsByType(t SymbolType) []Record {
	var out []Record
	p.Spans.ForEachRecord(func(r Record) {
		if r.Attributes.Type() == t {
			out = append(out, r)
		}
	})
	return out
}

// GetFunctions returns every indexed function-declaration record.
func (p *ProjectDB) GetFunctions() []Record { return p.recordsByType(FunctionDeclaration) }

// GetClasses returns every indexed class-declaration record.
func (p *ProjectDB) GetClasses() []Record { return p.recordsByType(ClassDeclaration) }

// GetGlobalVariables returns every indexed variable-declaration record
// marked global.
func (p *ProjectDB) GetGlobalVariables() []Record {
	return filterRecords(p.recordsByType(VariableDeclaration), func(r Record) bool {
		return r.Attributes.IsGlobal()
	})
}

// MergeFrom absorbs every translation unit from other into p, remapping
// string/path/span keys as needed. A unit already present in p (by main
// file) is left untouched: MergeFrom never overwrites, only adds.
func (p *ProjectDB) MergeFrom(other *ProjectDB) error {
	symbolRemap, err := p.Symbols.MergeStringTable(other.Symbols)
	if err != nil {
		return fmt.Errorf("merging symbols: %w", err)
	}
	nsRemap, err := p.Namespaces.MergeStringTable(other.Namespaces)
	if err != nil {
		return fmt.Errorf("merging namespaces: %w", err)
	}
	fileRemap, err := p.FileNames.MergeStringTable(other.FileNames)
	if err != nil {
		return fmt.Errorf("merging file names: %w", err)
	}

	for _, mainFileKey := range other.unitOrder {
		newMainFileKey := fileRemap[mainFileKey]
		if _, exists := p.units[newMainFileKey]; exists {
			continue
		}

		tu := other.units[mainFileKey]
		records := remapRecords(tu.CopyRecords(other.Spans), symbolRemap, nsRemap, fileRemap)

		newTU := NewTranslationUnit(newMainFileKey)
		if err := newTU.BuildSpans(p.Spans, records); err != nil {
			return err
		}
		p.units[newMainFileKey] = newTU
		p.unitOrder = append(p.unitOrder, newMainFileKey)
	}
	return nil
}

// UpdateFrom behaves like MergeFrom, except that when other supplies a
// translation unit whose main file p already has, the existing unit's
// spans are released and replaced rather than skipped — the refresh
// semantics an incremental re-index needs, as opposed to MergeFrom's
// additive-only contract.
func (p *ProjectDB) UpdateFrom(other *ProjectDB) error {
	symbolRemap, err := p.Symbols.MergeStringTable(other.Symbols)
	if err != nil {
		return fmt.Errorf("merging symbols: %w", err)
	}
	nsRemap, err := p.Namespaces.MergeStringTable(other.Namespaces)
	if err != nil {
		return fmt.Errorf("merging namespaces: %w", err)
	}
	fileRemap, err := p.FileNames.MergeStringTable(other.FileNames)
	if err != nil {
		return fmt.Errorf("merging file names: %w", err)
	}

	for _, mainFileKey := range other.unitOrder {
		newMainFileKey := fileRemap[mainFileKey]

		if existing, exists := p.units[newMainFileKey]; exists {
			existing.Release(p.Spans)
			delete(p.units, newMainFileKey)
			p.unitOrder = removePathKey(p.unitOrder, newMainFileKey)
		}

		tu := other.units[mainFileKey]
		records := remapRecords(tu.CopyRecords(other.Spans), symbolRemap, nsRemap, fileRemap)

		newTU := NewTranslationUnit(newMainFileKey)
		if err := newTU.BuildSpans(p.Spans, records); err != nil {
			return err
		}
		p.units[newMainFileKey] = newTU
		p.unitOrder = append(p.unitOrder, newMainFileKey)
	}
	return nil
}

func remapRecords(records []Record, symbolRemap, nsRemap map[strtab.Key]strtab.Key, fileRemap map[pathtab.Key]pathtab.Key) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Record{
			SymbolNameKey:    symbolRemap[r.SymbolNameKey],
			NamespaceNameKey: nsRemap[r.NamespaceNameKey],
			Location:         Location{FileNameKey: fileRemap[r.Location.FileNameKey], packedLineColumn: r.Location.packedLineColumn},
			Definition:       Location{FileNameKey: fileRemap[r.Definition.FileNameKey], packedLineColumn: r.Definition.packedLineColumn},
			Attributes:       r.Attributes,
		}
	}
	return out
}

const projectTag = "ftags.tags.ProjectDB"
const projectVersion = 1

// Serialize writes the full database: metadata, the three string
// tables, the span manager, and every translation unit in index order.
func (p *ProjectDB) Serialize(w *wire.Writer) error {
	bw := wire.NewBufferWriter()
	if err := bw.WriteString(p.Name); err != nil {
		return err
	}
	if err := bw.WriteString(p.Root); err != nil {
		return err
	}
	if err := p.Symbols.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := p.Namespaces.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := p.FileNames.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := p.Spans.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := bw.WriteUint64(uint64(len(p.unitOrder))); err != nil {
		return err
	}
	for _, mainFileKey := range p.unitOrder {
		if err := p.units[mainFileKey].Serialize(bw.Writer); err != nil {
			return err
		}
	}

	body := bw.Bytes()
	if err := w.WriteHeader(projectTag, projectVersion, uint64(len(body))); err != nil {
		return err
	}
	return w.WriteBytes(body)
}

// DeserializeProjectDB reconstructs a database previously written by
// Serialize.
func DeserializeProjectDB(r *wire.Reader) (*ProjectDB, error) {
	if _, err := r.ReadHeader(projectTag); err != nil {
		return nil, err
	}

	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	root, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	symbols, err := strtab.Deserialize(r)
	if err != nil {
		return nil, err
	}
	namespaces, err := strtab.Deserialize(r)
	if err != nil {
		return nil, err
	}
	fileNames, err := pathtab.Deserialize(r)
	if err != nil {
		return nil, err
	}
	spans, err := DeserializeRecordSpanManager(r)
	if err != nil {
		return nil, err
	}
	count, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}

	p := &ProjectDB{
		Name:       name,
		Root:       root,
		Symbols:    symbols,
		Namespaces: namespaces,
		FileNames:  fileNames,
		Spans:      spans,
		units:      make(map[pathtab.Key]*TranslationUnit, count),
	}
	for i := uint64(0); i < count; i++ {
		tu, err := DeserializeTranslationUnit(r)
		if err != nil {
			return nil, err
		}
		p.units[tu.MainFileKey] = tu
		p.unitOrder = append(p.unitOrder, tu.MainFileKey)
	}
	return p, nil
}
