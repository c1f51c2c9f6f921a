package tags

import (
	"github.com/cespare/xxhash/v2"

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/pathtab"
	"github.com/0x8000-0000/ftagsd/internal/strtab"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// contentHashOf derives a 128-bit content hash for body by combining two
// 64-bit xxhash digests under different seeds — enough collision
// resistance for a corruption check without pulling in a dedicated
// 128-bit hash library for this one call site.
func contentHashOf(body []byte) [16]byte {
	var out [16]byte
	h1 := xxhash.NewWithSeed(hashSeed)
	_, _ = h1.Write(body)
	h2 := xxhash.NewWithSeed(^hashSeed)
	_, _ = h2.Write(body)

	v1, v2 := h1.Sum64(), h2.Sum64()
	for i := 0; i < 8; i++ {
		out[i] = byte(v1 >> (8 * i))
		out[8+i] = byte(v2 >> (8 * i))
	}
	return out
}

// CursorSet is a self-contained projection of a query result: a copy of
// just the records a query matched, plus private string/path tables
// holding only the symbol, namespace, and file names those records
// actually reference. Unlike a ProjectDB, a CursorSet never needs the
// owning database again once built — it can be serialized, sent across
// the wire, and inflated back into Records on its own.
type CursorSet struct {
	Symbols    *strtab.Table
	Namespaces *strtab.Table
	FileNames  *pathtab.Table
	Records    []Record
}

// BuildCursorSet copies records out of db into a standalone set,
// interning only the strings those records reference.
func BuildCursorSet(db *ProjectDB, records []Record) (*CursorSet, error) {
	cs := &CursorSet{
		Symbols:    strtab.New(),
		Namespaces: strtab.New(),
		FileNames:  pathtab.New(),
	}

	symbolRemap := make(map[strtab.Key]strtab.Key)
	nsRemap := make(map[strtab.Key]strtab.Key)
	fileRemap := make(map[pathtab.Key]pathtab.Key)

	internSymbol := func(key strtab.Key) (strtab.Key, error) {
		if key == strtab.InvalidKey {
			return strtab.InvalidKey, nil
		}
		if mapped, ok := symbolRemap[key]; ok {
			return mapped, nil
		}
		s, _ := db.Symbols.GetString(key)
		mapped, err := cs.Symbols.AddKey(s)
		if err != nil {
			return strtab.InvalidKey, err
		}
		symbolRemap[key] = mapped
		return mapped, nil
	}
	internNamespace := func(key strtab.Key) (strtab.Key, error) {
		if key == strtab.InvalidKey {
			return strtab.InvalidKey, nil
		}
		if mapped, ok := nsRemap[key]; ok {
			return mapped, nil
		}
		s, _ := db.Namespaces.GetString(key)
		mapped, err := cs.Namespaces.AddKey(s)
		if err != nil {
			return strtab.InvalidKey, err
		}
		nsRemap[key] = mapped
		return mapped, nil
	}
	internFile := func(key pathtab.Key) (pathtab.Key, error) {
		if key == pathtab.InvalidKey {
			return pathtab.InvalidKey, nil
		}
		if mapped, ok := fileRemap[key]; ok {
			return mapped, nil
		}
		p := db.FileNames.GetPath(key)
		mapped, err := cs.FileNames.AddKey(p)
		if err != nil {
			return pathtab.InvalidKey, err
		}
		fileRemap[key] = mapped
		return mapped, nil
	}

	for _, r := range records {
		symKey, err := internSymbol(r.SymbolNameKey)
		if err != nil {
			return nil, err
		}
		nsKey, err := internNamespace(r.NamespaceNameKey)
		if err != nil {
			return nil, err
		}
		locFile, err := internFile(r.Location.FileNameKey)
		if err != nil {
			return nil, err
		}
		defFile, err := internFile(r.Definition.FileNameKey)
		if err != nil {
			return nil, err
		}

		cs.Records = append(cs.Records, Record{
			SymbolNameKey:    symKey,
			NamespaceNameKey: nsKey,
			Location:         Location{FileNameKey: locFile, packedLineColumn: r.Location.packedLineColumn},
			Definition:       Location{FileNameKey: defFile, packedLineColumn: r.Definition.packedLineColumn},
			Attributes:       r.Attributes,
		})
	}

	return cs, nil
}

// InflatedRecord is a record with its interned keys resolved back into
// strings, for display or transmission as a flat, self-describing value.
type InflatedRecord struct {
	Symbol     string
	Namespace  string
	File       string
	Line       uint32
	Column     uint32
	Definition string
	DefLine    uint32
	DefColumn  uint32
	Attributes Attributes
}

// Inflate resolves every record in the set through its private tables.
func (cs *CursorSet) Inflate() []InflatedRecord {
	out := make([]InflatedRecord, len(cs.Records))
	for i, r := range cs.Records {
		symbol, _ := cs.Symbols.GetString(r.SymbolNameKey)
		ns, _ := cs.Namespaces.GetString(r.NamespaceNameKey)
		file := cs.FileNames.GetPath(r.Location.FileNameKey)
		defFile := cs.FileNames.GetPath(r.Definition.FileNameKey)

		out[i] = InflatedRecord{
			Symbol:     symbol,
			Namespace:  ns,
			File:       file,
			Line:       r.Location.Line(),
			Column:     r.Location.Column(),
			Definition: defFile,
			DefLine:    r.Definition.Line(),
			DefColumn:  r.Definition.Column(),
			Attributes: r.Attributes,
		}
	}
	return out
}

const cursorSetTag = "ftags.tags.CursorSet"
const cursorSetVersion = 1

// Serialize writes the set's tables and records, framed with a
// wire.Header whose ContentHash is computed over the body — unlike
// every other object in this package, a CursorSet's header hash is
// meaningful: it travels across process boundaries (daemon to client)
// where a corrupted frame needs to be caught before it's inflated.
func (cs *CursorSet) Serialize(w *wire.Writer) error {
	bw := wire.NewBufferWriter()
	if err := cs.Symbols.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := cs.Namespaces.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := cs.FileNames.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := bw.WriteUint64(uint64(len(cs.Records))); err != nil {
		return err
	}
	for _, r := range cs.Records {
		if err := writeRecord(bw.Writer, r); err != nil {
			return err
		}
	}

	body := bw.Bytes()
	hash := contentHashOf(body)
	if err := w.WriteHeaderWithHash(cursorSetTag, cursorSetVersion, uint64(len(body)), hash); err != nil {
		return err
	}
	return w.WriteBytes(body)
}

// DeserializeCursorSet reconstructs a set previously written by
// Serialize, verifying its content hash against the body actually read.
func DeserializeCursorSet(r *wire.Reader) (*CursorSet, error) {
	hdr, err := r.ReadHeader(cursorSetTag)
	if err != nil {
		return nil, err
	}

	body, err := r.ReadBytes(int(hdr.Size))
	if err != nil {
		return nil, err
	}
	if got := contentHashOf(body); got != hdr.ContentHash {
		return nil, ferrors.DeserializationMismatchError("cursor set: content hash mismatch")
	}

	br := wire.NewBufferReader(body)
	symbols, err := strtab.Deserialize(br)
	if err != nil {
		return nil, err
	}
	namespaces, err := strtab.Deserialize(br)
	if err != nil {
		return nil, err
	}
	fileNames, err := pathtab.Deserialize(br)
	if err != nil {
		return nil, err
	}
	count, err := br.ReadUint64()
	if err != nil {
		return nil, err
	}

	cs := &CursorSet{Symbols: symbols, Namespaces: namespaces, FileNames: fileNames}
	for i := uint64(0); i < count; i++ {
		rec, err := readRecord(br)
		if err != nil {
			return nil, err
		}
		cs.Records = append(cs.Records, rec)
	}
	return cs, nil
}
