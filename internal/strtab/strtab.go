// Package strtab implements the String Table: a slab-backed interning
// table mapping byte strings to stable 32-bit keys and back, with
// removal and cross-table merge.
package strtab

import (
	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/slab"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// Key identifies an interned string. The zero value never identifies a
// live entry.
type Key = slab.Key

// InvalidKey is returned by GetKey for a string that was never added (or
// has since been removed).
const InvalidKey = slab.InvalidKey

// alignment rounds every allocation up to a 4-byte boundary. This packs
// strings tightly enough to avoid per-entry waste while letting the Table
// track exact lengths out-of-band instead of relying on a NUL scan —
// reuse of a freed block only requires the rounded sizes to match, not
// the original string's exact length.
const alignment = 4

func alignedSize(n int) uint32 {
	return uint32((n + alignment - 1) &^ (alignment - 1))
}

// Table is a String Table: a Slab Store of bytes plus a bidirectional
// index. The index is the authoritative source for string boundaries;
// the slab exists to give the table a compact, serializable, content-
// addressable backing store.
type Table struct {
	store   *slab.Store[byte]
	forward map[string]Key
	reverse map[Key]string
}

// New creates an empty String Table.
func New() *Table {
	return &Table{
		store:   slab.NewStore[byte](slab.DefaultSegmentBits, 0),
		forward: make(map[string]Key),
		reverse: make(map[Key]string),
	}
}

// GetKey returns the key for s, or InvalidKey if s has not been added.
func (t *Table) GetKey(s string) Key {
	if k, ok := t.forward[s]; ok {
		return k
	}
	return InvalidKey
}

// GetString returns the string for key, or "" and false if key is not
// live in this table.
func (t *Table) GetString(key Key) (string, bool) {
	s, ok := t.reverse[key]
	return s, ok
}

// AddKey interns s, returning its key. Calling AddKey twice with the same
// string returns the same key without allocating again.
func (t *Table) AddKey(s string) (Key, error) {
	if existing, ok := t.forward[s]; ok {
		return existing, nil
	}
	if len(s) == 0 {
		return InvalidKey, ferrors.InvalidKeyError("strtab: cannot intern an empty string")
	}

	size := alignedSize(len(s))
	key, err := t.store.Allocate(size)
	if err != nil {
		return InvalidKey, err
	}

	run, err := t.store.Get(key, size)
	if err != nil {
		return InvalidKey, err
	}
	copy(run, s)
	for i := len(s); i < len(run); i++ {
		run[i] = 0
	}

	t.forward[s] = key
	t.reverse[key] = s
	return key, nil
}

// RemoveKey frees the slab bytes backing s and drops it from the index.
// There is no reference counting: callers needing shared ownership must
// layer it on top (see internal/pathtab).
func (t *Table) RemoveKey(s string) {
	key, ok := t.forward[s]
	if !ok {
		return
	}
	t.store.Deallocate(key, alignedSize(len(s)))
	delete(t.forward, s)
	delete(t.reverse, key)
}

// MergeStringTable ensures every string in other is present in t and
// returns a map from other's keys to t's keys, dense enough to relocate
// every record that referenced one of other's keys.
func (t *Table) MergeStringTable(other *Table) (map[Key]Key, error) {
	remap := make(map[Key]Key, len(other.reverse))
	for otherKey, s := range other.reverse {
		selfKey, err := t.AddKey(s)
		if err != nil {
			return nil, err
		}
		remap[otherKey] = selfKey
	}
	return remap, nil
}

// Len reports the number of live interned strings.
func (t *Table) Len() int {
	return len(t.forward)
}

const tableTag = "ftags.strtab.Table"
const tableVersion = 1

// Serialize writes the table's slab store followed by an explicit
// (key, string) index, framed with a wire.Header.
func (t *Table) Serialize(w *wire.Writer) error {
	bw := wire.NewBufferWriter()
	if err := t.store.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := bw.WriteUint64(uint64(len(t.reverse))); err != nil {
		return err
	}
	for key, s := range t.reverse {
		if err := bw.WriteUint32(uint32(key)); err != nil {
			return err
		}
		if err := bw.WriteString(s); err != nil {
			return err
		}
	}

	body := bw.Bytes()
	if err := w.WriteHeader(tableTag, tableVersion, uint64(len(body))); err != nil {
		return err
	}
	return w.WriteBytes(body)
}

// Deserialize reconstructs a Table previously written by Serialize.
func Deserialize(r *wire.Reader) (*Table, error) {
	if _, err := r.ReadHeader(tableTag); err != nil {
		return nil, err
	}

	store, err := slab.Deserialize[byte](r)
	if err != nil {
		return nil, err
	}

	count, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}

	t := &Table{
		store:   store,
		forward: make(map[string]Key, count),
		reverse: make(map[Key]string, count),
	}
	for i := uint64(0); i < count; i++ {
		rawKey, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		key := Key(rawKey)
		t.forward[s] = key
		t.reverse[key] = s
	}
	return t, nil
}
