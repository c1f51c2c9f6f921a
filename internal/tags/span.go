package tags

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/0x8000-0000/ftagsd/internal/slab"
)

// SpanKey identifies a RecordSpan's header inside a RecordSpanManager's
// Slab Store of headers.
type SpanKey = slab.Key

// InvalidSpanKey never identifies a live span.
const InvalidSpanKey SpanKey = 0

// hashSeed seeds the content hash used to dedup identical spans across
// translation units. Any fixed value works; this one just needs to stay
// stable across runs so on-disk caches keep matching.
const hashSeed uint64 = 0x0accedd62cf0b9bf

// recordSpanHeader is the fixed-size record a RecordSpanManager keeps in
// its Slab Store of headers. It owns no data directly: recordKey and
// orderKey point into the manager's Slab Store of Record and Slab Store
// of u32 respectively, so the header itself stays small and trivially
// copyable.
type recordSpanHeader struct {
	hash           uint64
	recordKey      slab.Key
	orderKey       slab.Key
	size           uint32
	referenceCount uint32
}

// spanContentHash hashes both symbol identity and source location so
// that spans from different parses of the same file only share a span
// when every byte of the content genuinely matches.
func spanContentHash(records []Record) uint64 {
	h := xxhash.NewWithSeed(hashSeed)
	for _, r := range records {
		var buf [24]byte
		le32(buf[0:4], uint32(r.SymbolNameKey))
		le32(buf[4:8], uint32(r.NamespaceNameKey))
		le32(buf[8:12], uint32(r.Location.FileNameKey))
		le32(buf[12:16], r.Location.packedLineColumn)
		le32(buf[16:20], r.Attributes.flags)
		le32(buf[20:24], r.Attributes.level)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func le32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// recordsEqual reports whether a and b hold the same records in the same
// order. Record is a plain comparable struct, so this is a pure value
// comparison with no deep-equal machinery needed. Used to verify true
// equality after a hash match, since spanContentHash's 64 bits admit
// collisions.
func recordsEqual(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// symbolKeyOrder returns an index permutation over records sorted by
// SymbolNameKey, letting ForEachRecordWithSymbol binary search instead of
// scanning linearly.
func symbolKeyOrder(records []Record) []uint32 {
	order := make([]uint32, len(records))
	for i := range order {
		order[i] = uint32(i)
	}
	sort.Slice(order, func(i, j int) bool {
		return records[order[i]].SymbolNameKey < records[order[j]].SymbolNameKey
	})
	return order
}

// RecordSpan is a read-only view over a contiguous run of Records parsed
// from a single file during one translation unit's parse. Spans are
// content-addressed: two translation units that produce byte-identical
// Records for the same file share one span, found via its Hash. A
// RecordSpan stores no data itself; every accessor reads through to its
// owning manager's Slab Stores, keyed by the header at Key().
type RecordSpan struct {
	mgr *RecordSpanManager
	key SpanKey
}

func (s RecordSpan) header() recordSpanHeader {
	run, err := s.mgr.headers.Get(s.key, 1)
	if err != nil {
		return recordSpanHeader{}
	}
	return run[0]
}

// Key returns the span's identity in its owning RecordSpanManager.
func (s RecordSpan) Key() SpanKey { return s.key }

// Size returns the number of records in the span.
func (s RecordSpan) Size() uint32 { return s.header().size }

// Hash returns the span's content hash, used for dedup.
func (s RecordSpan) Hash() uint64 { return s.header().hash }

// ReferenceCount returns the number of translation units currently
// sharing this span.
func (s RecordSpan) ReferenceCount() uint32 { return s.header().referenceCount }

// Records returns the span's records in file order. Callers must treat
// the slice as read-only: it aliases the manager's own Slab Store.
func (s RecordSpan) Records() []Record {
	h := s.header()
	records, err := s.mgr.records.Get(h.recordKey, h.size)
	if err != nil {
		return nil
	}
	return records
}

func (s RecordSpan) order() []uint32 {
	h := s.header()
	order, err := s.mgr.order.Get(h.orderKey, h.size)
	if err != nil {
		return nil
	}
	return order
}

func (s RecordSpan) addRef() {
	run, err := s.mgr.headers.Get(s.key, 1)
	if err != nil {
		return
	}
	run[0].referenceCount++
}

// release decrements the reference count in place and returns the count
// after decrementing.
func (s RecordSpan) release() uint32 {
	run, err := s.mgr.headers.Get(s.key, 1)
	if err != nil {
		return 0
	}
	if run[0].referenceCount > 0 {
		run[0].referenceCount--
	}
	return run[0].referenceCount
}

// ForEachRecord calls fn for every record in the span, in file order.
func (s RecordSpan) ForEachRecord(fn func(Record)) {
	for _, r := range s.Records() {
		fn(r)
	}
}

// ForEachRecordWithSymbol calls fn for every record whose SymbolNameKey
// equals symbolKey, using the span's symbol-key-ordered index to avoid a
// full scan.
func (s RecordSpan) ForEachRecordWithSymbol(symbolKey uint32, fn func(Record)) {
	records := s.Records()
	order := s.order()
	lo := sort.Search(len(order), func(i int) bool {
		return uint32(records[order[i]].SymbolNameKey) >= symbolKey
	})
	for i := lo; i < len(order) && uint32(records[order[i]].SymbolNameKey) == symbolKey; i++ {
		fn(records[order[i]])
	}
}
