// Package pathtab implements the File-Name Table: a path interner built
// on top of a String Table. A path is split on '/' and stored as a chain
// of (element, parent) links so that shared prefixes across many files
// are stored once.
package pathtab

import (
	"strings"

	"github.com/0x8000-0000/ftagsd/internal/strtab"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// Key identifies a path (or a path prefix) in a Table.
type Key uint32

// InvalidKey never identifies a live path.
const InvalidKey Key = 0

// splitPath breaks a path into its '/'-separated elements. A leading '/'
// yields an empty first element, marking the path as absolute.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}

	var result []string
	start := 0
	if path[0] == '/' {
		result = append(result, "")
		start = 1
	}

	for start <= len(path) {
		idx := strings.IndexByte(path[start:], '/')
		if idx < 0 {
			if start != len(path) {
				result = append(result, path[start:])
			}
			break
		}
		end := start + idx
		if start != end {
			result = append(result, path[start:end])
		}
		start = end + 1
	}
	return result
}

// node is one link in a path chain: the interned element string plus the
// key of the path this element was appended to.
type node struct {
	elementKey    strtab.Key
	parentPathKey Key
	refCount      uint32
	isTerminal    bool
}

type elementParent struct {
	elementKey    strtab.Key
	parentPathKey Key
}

// Table interns full paths as chains of shared element nodes.
type Table struct {
	elements      *strtab.Table
	nodes         []node // index 0 is an unused placeholder for InvalidKey
	elementToNode map[elementParent]Key
}

// New creates an empty File-Name Table.
func New() *Table {
	return &Table{
		elements:      strtab.New(),
		nodes:         []node{{}}, // reserve index 0
		elementToNode: make(map[elementParent]Key),
	}
}

func (t *Table) elementKeyFor(elem string) (strtab.Key, error) {
	if elem == "" {
		// the root marker produced by a leading '/'; never interned, so
		// it never collides with a real (non-empty) path element.
		return strtab.InvalidKey, nil
	}
	return t.elements.AddKey(elem)
}

// AddKey interns path, returning its key. Calling AddKey again with the
// same path returns the same key and increments the share count of every
// element node along the chain.
func (t *Table) AddKey(path string) (Key, error) {
	elems := splitPath(path)

	var currentPathKey Key
	for _, elem := range elems {
		elemKey, err := t.elementKeyFor(elem)
		if err != nil {
			return InvalidKey, err
		}

		ep := elementParent{elementKey: elemKey, parentPathKey: currentPathKey}
		if existing, ok := t.elementToNode[ep]; ok {
			t.nodes[existing].refCount++
			currentPathKey = existing
			continue
		}

		currentPathKey = Key(len(t.nodes))
		t.nodes = append(t.nodes, node{elementKey: elemKey, parentPathKey: ep.parentPathKey, refCount: 1})
		t.elementToNode[ep] = currentPathKey
	}

	if currentPathKey != InvalidKey {
		t.nodes[currentPathKey].isTerminal = true
	}
	return currentPathKey, nil
}

// GetKey returns the key for a previously added, still-terminal path.
// A path that only exists as a prefix of some other path (never itself
// added, or since removed) returns InvalidKey.
func (t *Table) GetKey(path string) Key {
	elems := splitPath(path)

	var currentPathKey Key
	for _, elem := range elems {
		elemKey := t.elements.GetKey(elem)
		if elem != "" && elemKey == strtab.InvalidKey {
			return InvalidKey
		}

		ep := elementParent{elementKey: elemKey, parentPathKey: currentPathKey}
		next, ok := t.elementToNode[ep]
		if !ok {
			return InvalidKey
		}
		currentPathKey = next
	}

	if currentPathKey != InvalidKey && t.nodes[currentPathKey].isTerminal {
		return currentPathKey
	}
	return InvalidKey
}

// GetPath reconstructs the full path string for key.
func (t *Table) GetPath(key Key) string {
	var elems []string
	for key != InvalidKey {
		n := t.nodes[key]
		s, _ := t.elements.GetString(n.elementKey)
		elems = append(elems, s)
		key = n.parentPathKey
	}
	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return strings.Join(elems, "/")
}

// RemoveKey decrements the share count of every element node in path's
// chain and clears the terminal flag on its last node. Nodes left with a
// zero count and no terminal flag are not reaped: their keys stay valid
// for any path that still shares the prefix.
func (t *Table) RemoveKey(path string) {
	elems := splitPath(path)

	var currentPathKey Key
	for _, elem := range elems {
		elemKey := t.elements.GetKey(elem)
		if elem != "" && elemKey == strtab.InvalidKey {
			return
		}

		ep := elementParent{elementKey: elemKey, parentPathKey: currentPathKey}
		next, ok := t.elementToNode[ep]
		if !ok {
			return
		}
		currentPathKey = next
		if t.nodes[currentPathKey].refCount > 0 {
			t.nodes[currentPathKey].refCount--
		}
	}

	if currentPathKey != InvalidKey {
		t.nodes[currentPathKey].isTerminal = false
	}
}

// MergeStringTable ensures every path in other is present in t and
// returns a map from other's keys to t's keys.
func (t *Table) MergeStringTable(other *Table) (map[Key]Key, error) {
	remap := make(map[Key]Key, len(other.nodes))
	remap[InvalidKey] = InvalidKey

	for key := range other.nodes {
		k := Key(key)
		if k == InvalidKey || !other.nodes[k].isTerminal {
			continue
		}
		path := other.GetPath(k)
		newKey, err := t.AddKey(path)
		if err != nil {
			return nil, err
		}
		remap[k] = newKey
	}
	return remap, nil
}

const tableTag = "ftags.pathtab.Table"
const tableVersion = 1

// Serialize writes the element String Table followed by the node chain
// and the terminal-path set, framed with a wire.Header.
func (t *Table) Serialize(w *wire.Writer) error {
	bw := wire.NewBufferWriter()
	if err := t.elements.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := bw.WriteUint64(uint64(len(t.nodes))); err != nil {
		return err
	}
	for _, n := range t.nodes {
		if err := bw.WriteUint32(uint32(n.elementKey)); err != nil {
			return err
		}
		if err := bw.WriteUint32(uint32(n.parentPathKey)); err != nil {
			return err
		}
		if err := bw.WriteUint32(n.refCount); err != nil {
			return err
		}
		terminal := uint8(0)
		if n.isTerminal {
			terminal = 1
		}
		if err := bw.WriteUint8(terminal); err != nil {
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

	elements, err := strtab.Deserialize(r)
	if err != nil {
		return nil, err
	}

	count, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}

	t := &Table{
		elements:      elements,
		nodes:         make([]node, 0, count),
		elementToNode: make(map[elementParent]Key, count),
	}
	for i := uint64(0); i < count; i++ {
		elemKey, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		parentKey, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		refCount, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		terminal, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}

		n := node{
			elementKey:    strtab.Key(elemKey),
			parentPathKey: Key(parentKey),
			refCount:      refCount,
			isTerminal:    terminal != 0,
		}
		t.nodes = append(t.nodes, n)
		if i > 0 {
			ep := elementParent{elementKey: n.elementKey, parentPathKey: n.parentPathKey}
			t.elementToNode[ep] = Key(i)
		}
	}
	return t, nil
}
