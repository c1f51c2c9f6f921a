package tags

import (
	"github.com/0x8000-0000/ftagsd/internal/pathtab"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// TranslationUnit is the parse result of one compiled file: the main
// file's key, plus the ordered sequence of RecordSpans a frontend
// produced while walking it (its own records, and records pulled in
// from every header it includes).
type TranslationUnit struct {
	MainFileKey pathtab.Key
	Spans       []SpanKey
}

// NewTranslationUnit starts an empty unit for mainFileKey.
func NewTranslationUnit(mainFileKey pathtab.Key) *TranslationUnit {
	return &TranslationUnit{MainFileKey: mainFileKey}
}

// recordBatch groups consecutive cursor records that share a file, the
// unit a frontend needs to hand the span manager.
type recordBatch struct {
	fileKey pathtab.Key
	records []Record
}

// BuildSpans partitions records into per-file batches, preserving the
// order records arrived in, splitting a new batch every time the file
// key changes — mirroring how a libclang AST walk visits one file's
// cursors contiguously before crossing an #include boundary. Each batch
// is registered with mgr and appended to the unit's span list.
func (tu *TranslationUnit) BuildSpans(mgr *RecordSpanManager, records []Record) error {
	var batches []recordBatch
	for _, r := range records {
		fileKey := r.Location.FileNameKey
		if n := len(batches); n > 0 && batches[n-1].fileKey == fileKey {
			batches[n-1].records = append(batches[n-1].records, r)
			continue
		}
		batches = append(batches, recordBatch{fileKey: fileKey, records: []Record{r}})
	}

	for _, b := range batches {
		key, err := mgr.AddSpan(b.fileKey, b.records)
		if err != nil {
			return err
		}
		tu.Spans = append(tu.Spans, key)
	}
	return nil
}

// CopyRecords returns every record across every span in the unit, in
// span order.
func (tu *TranslationUnit) CopyRecords(mgr *RecordSpanManager) []Record {
	var out []Record
	for _, spanKey := range tu.Spans {
		span, ok := mgr.GetSpan(spanKey)
		if !ok {
			continue
		}
		out = append(out, span.Records()...)
	}
	return out
}

// Release drops the unit's reference to every one of its spans,
// reclaiming any span that drops to zero references as a result.
func (tu *TranslationUnit) Release(mgr *RecordSpanManager) {
	for _, spanKey := range tu.Spans {
		mgr.ReleaseSpan(spanKey)
	}
	tu.Spans = nil
}

const tuTag = "ftags.tags.TranslationUnit"
const tuVersion = 1

// Serialize writes the unit's main file key and span key list.
func (tu *TranslationUnit) Serialize(w *wire.Writer) error {
	bw := wire.NewBufferWriter()
	if err := bw.WriteUint32(uint32(tu.MainFileKey)); err != nil {
		return err
	}
	spans := make([]uint32, len(tu.Spans))
	for i, k := range tu.Spans {
		spans[i] = uint32(k)
	}
	if err := wire.WriteVector(bw.Writer, spans); err != nil {
		return err
	}

	body := bw.Bytes()
	if err := w.WriteHeader(tuTag, tuVersion, uint64(len(body))); err != nil {
		return err
	}
	return w.WriteBytes(body)
}

// DeserializeTranslationUnit reconstructs a unit previously written by
// Serialize. It does not touch the RecordSpanManager: the spans it
// references must already be live in it (see DeserializeProjectDB,
// which reads the span manager before its translation units).
func DeserializeTranslationUnit(r *wire.Reader) (*TranslationUnit, error) {
	if _, err := r.ReadHeader(tuTag); err != nil {
		return nil, err
	}

	mainFileKey, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	spans, err := wire.ReadVector[uint32](r)
	if err != nil {
		return nil, err
	}

	tu := &TranslationUnit{MainFileKey: pathtab.Key(mainFileKey)}
	tu.Spans = make([]SpanKey, len(spans))
	for i, k := range spans {
		tu.Spans[i] = SpanKey(k)
	}
	return tu, nil
}
