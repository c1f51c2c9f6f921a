package tags

import (
	"github.com/0x8000-0000/ftagsd/internal/pathtab"
	"github.com/0x8000-0000/ftagsd/internal/slab"
	"github.com/0x8000-0000/ftagsd/internal/strtab"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// RecordSpanManager owns the Slab Store of RecordSpan headers, the Slab
// Store of Record backing every span's content, and the Slab Store of
// u32 backing every span's symbol-key order permutation, plus the
// indexes needed to find spans: by symbol, by file, and by content hash
// (for dedup). The symbol/file/hash indexes and the live set are derived
// data — rebuilt from the header store itself after Deserialize rather
// than persisted.
type RecordSpanManager struct {
	headers *slab.Store[recordSpanHeader]
	records *slab.Store[Record]
	order   *slab.Store[uint32]

	symbolIndex map[strtab.Key][]SpanKey
	fileIndex   map[pathtab.Key][]SpanKey
	hashIndex   map[uint64][]SpanKey

	live map[SpanKey]struct{}
}

// NewRecordSpanManager creates an empty manager.
func NewRecordSpanManager() *RecordSpanManager {
	return &RecordSpanManager{
		headers:     slab.NewStore[recordSpanHeader](slab.DefaultSegmentBits, 0),
		records:     slab.NewStore[Record](slab.DefaultSegmentBits, 0),
		order:       slab.NewStore[uint32](slab.DefaultSegmentBits, 0),
		symbolIndex: make(map[strtab.Key][]SpanKey),
		fileIndex:   make(map[pathtab.Key][]SpanKey),
		hashIndex:   make(map[uint64][]SpanKey),
		live:        make(map[SpanKey]struct{}),
	}
}

func (m *RecordSpanManager) span(key SpanKey) RecordSpan {
	return RecordSpan{mgr: m, key: key}
}

// AddSpan either registers a brand-new span for records, or finds an
// existing span with identical content and bumps its reference count.
// fileKey is the file every record in records belongs to. hashIndex has
// no eviction, so a span parsed once is found again regardless of how
// many distinct spans the project has accumulated since.
func (m *RecordSpanManager) AddSpan(fileKey pathtab.Key, records []Record) (SpanKey, error) {
	hash := spanContentHash(records)

	for _, candidate := range m.hashIndex[hash] {
		if _, ok := m.live[candidate]; !ok {
			continue
		}
		existing := m.span(candidate)
		if recordsEqual(existing.Records(), records) {
			existing.addRef()
			return candidate, nil
		}
	}

	size := uint32(len(records))

	recordKey, err := m.records.Allocate(size)
	if err != nil {
		return InvalidSpanKey, err
	}
	recordRun, err := m.records.Get(recordKey, size)
	if err != nil {
		return InvalidSpanKey, err
	}
	copy(recordRun, records)

	orderKey, err := m.order.Allocate(size)
	if err != nil {
		return InvalidSpanKey, err
	}
	orderRun, err := m.order.Get(orderKey, size)
	if err != nil {
		return InvalidSpanKey, err
	}
	copy(orderRun, symbolKeyOrder(records))

	headerKey, err := m.headers.Allocate(1)
	if err != nil {
		return InvalidSpanKey, err
	}
	headerRun, err := m.headers.Get(headerKey, 1)
	if err != nil {
		return InvalidSpanKey, err
	}
	headerRun[0] = recordSpanHeader{
		hash:           hash,
		recordKey:      recordKey,
		orderKey:       orderKey,
		size:           size,
		referenceCount: 1,
	}

	m.live[headerKey] = struct{}{}
	m.hashIndex[hash] = append(m.hashIndex[hash], headerKey)
	m.fileIndex[fileKey] = append(m.fileIndex[fileKey], headerKey)
	for _, r := range records {
		if keys := m.symbolIndex[r.SymbolNameKey]; len(keys) == 0 || keys[len(keys)-1] != headerKey {
			m.symbolIndex[r.SymbolNameKey] = append(keys, headerKey)
		}
	}
	return headerKey, nil
}

// GetSpan returns the span for key, or false if it is not live.
func (m *RecordSpanManager) GetSpan(key SpanKey) (RecordSpan, bool) {
	if _, ok := m.live[key]; !ok {
		return RecordSpan{}, false
	}
	return m.span(key), true
}

// ReleaseSpan decrements key's reference count, removing the span and
// its index entries once nothing references it.
func (m *RecordSpanManager) ReleaseSpan(key SpanKey) {
	if _, ok := m.live[key]; !ok {
		return
	}
	span := m.span(key)
	if span.release() > 0 {
		return
	}

	h := span.header()
	records := span.Records()

	delete(m.live, key)
	for _, r := range records {
		m.symbolIndex[r.SymbolNameKey] = removeSpanKey(m.symbolIndex[r.SymbolNameKey], key)
		if len(m.symbolIndex[r.SymbolNameKey]) == 0 {
			delete(m.symbolIndex, r.SymbolNameKey)
		}
	}
	for fileKey, keys := range m.fileIndex {
		if idx := indexOfSpanKey(keys, key); idx >= 0 {
			m.fileIndex[fileKey] = removeSpanKey(keys, key)
			break
		}
	}
	m.hashIndex[h.hash] = removeSpanKey(m.hashIndex[h.hash], key)

	m.records.Deallocate(h.recordKey, h.size)
	m.order.Deallocate(h.orderKey, h.size)
	m.headers.Deallocate(key, 1)
}

func indexOfSpanKey(keys []SpanKey, key SpanKey) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

func removeSpanKey(keys []SpanKey, key SpanKey) []SpanKey {
	idx := indexOfSpanKey(keys, key)
	if idx < 0 {
		return keys
	}
	return append(keys[:idx], keys[idx+1:]...)
}

// ForEachRecord calls fn for every live record across every span.
// Records with a zero SymbolNameKey (no interned name) are skipped.
func (m *RecordSpanManager) ForEachRecord(fn func(Record)) {
	for key := range m.live {
		for _, r := range m.span(key).Records() {
			if r.SymbolNameKey == strtab.InvalidKey {
				continue
			}
			fn(r)
		}
	}
}

// ForEachRecordWithSymbol calls fn for every record across every span
// indexed under symbolKey.
func (m *RecordSpanManager) ForEachRecordWithSymbol(symbolKey strtab.Key, fn func(Record)) {
	for _, spanKey := range m.symbolIndex[symbolKey] {
		if _, ok := m.live[spanKey]; !ok {
			continue
		}
		m.span(spanKey).ForEachRecordWithSymbol(uint32(symbolKey), fn)
	}
}

// FilterRecordsFromFile returns every record belonging to any span
// registered under fileKey.
func (m *RecordSpanManager) FilterRecordsFromFile(fileKey pathtab.Key) []Record {
	var out []Record
	for _, spanKey := range m.fileIndex[fileKey] {
		if _, ok := m.live[spanKey]; !ok {
			continue
		}
		out = append(out, m.span(spanKey).Records()...)
	}
	return out
}

// FindClosestRecord returns every record in fileKey whose location is
// the closest match at or before (line, column). More than one record
// can share the single closest location — a declaration and a
// definition at the same point, say — in which case all of them are
// returned. Reports false if the file has no record at or before the
// target.
func (m *RecordSpanManager) FindClosestRecord(fileKey pathtab.Key, line, column uint32) ([]Record, bool) {
	candidates := m.FilterRecordsFromFile(fileKey)
	target := line<<locationColumnBits | (column & locationColumnMask)

	var bestPos uint32
	found := false
	for _, r := range candidates {
		pos := r.Location.packedLineColumn
		if pos > target {
			continue
		}
		if !found || pos > bestPos {
			bestPos = pos
			found = true
		}
	}
	if !found {
		return nil, false
	}

	var out []Record
	for _, r := range candidates {
		if r.Location.packedLineColumn == bestPos {
			out = append(out, r)
		}
	}
	return out, true
}

// GetRecordCount returns the total number of records across every live
// span.
func (m *RecordSpanManager) GetRecordCount() int {
	count := 0
	for key := range m.live {
		count += int(m.span(key).Size())
	}
	return count
}

// GetSymbolCount returns the number of distinct symbol names indexed.
func (m *RecordSpanManager) GetSymbolCount() int {
	return len(m.symbolIndex)
}

const spanManagerTag = "ftags.tags.RecordSpanManager"
const spanManagerVersion = 1

// Serialize writes the three backing Slab Stores in sequence. The
// symbol/file/hash indexes and the live set are not written; Deserialize
// rebuilds them by walking the header store's allocated runs.
func (m *RecordSpanManager) Serialize(w *wire.Writer) error {
	bw := wire.NewBufferWriter()
	if err := m.headers.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := m.records.Serialize(bw.Writer); err != nil {
		return err
	}
	if err := m.order.Serialize(bw.Writer); err != nil {
		return err
	}

	body := bw.Bytes()
	if err := w.WriteHeader(spanManagerTag, spanManagerVersion, uint64(len(body))); err != nil {
		return err
	}
	return w.WriteBytes(body)
}

// DeserializeRecordSpanManager reconstructs a manager from its three
// Slab Stores and rebuilds its symbol/file/hash indexes and live set by
// walking every allocated run of headers. A single allocated run can
// span more than one header when two spans were allocated back to back
// with no free block between them, so each element of the run gets its
// own key computed by sequential offset from the run's start.
func DeserializeRecordSpanManager(r *wire.Reader) (*RecordSpanManager, error) {
	if _, err := r.ReadHeader(spanManagerTag); err != nil {
		return nil, err
	}

	headers, err := slab.Deserialize[recordSpanHeader](r)
	if err != nil {
		return nil, err
	}
	records, err := slab.Deserialize[Record](r)
	if err != nil {
		return nil, err
	}
	order, err := slab.Deserialize[uint32](r)
	if err != nil {
		return nil, err
	}

	m := &RecordSpanManager{
		headers:     headers,
		records:     records,
		order:       order,
		symbolIndex: make(map[strtab.Key][]SpanKey),
		fileIndex:   make(map[pathtab.Key][]SpanKey),
		hashIndex:   make(map[uint64][]SpanKey),
		live:        make(map[SpanKey]struct{}),
	}

	m.headers.ForEachAllocatedRun(func(runStart slab.Key, run []recordSpanHeader) {
		for i, h := range run {
			key := runStart + slab.Key(i)

			m.live[key] = struct{}{}
			m.hashIndex[h.hash] = append(m.hashIndex[h.hash], key)

			recs := m.span(key).Records()
			fileKey := pathtab.InvalidKey
			if len(recs) > 0 {
				fileKey = recs[0].Location.FileNameKey
			}
			m.fileIndex[fileKey] = append(m.fileIndex[fileKey], key)
			for _, rec := range recs {
				if keys := m.symbolIndex[rec.SymbolNameKey]; len(keys) == 0 || keys[len(keys)-1] != key {
					m.symbolIndex[rec.SymbolNameKey] = append(keys, key)
				}
			}
		}
	})

	return m, nil
}
