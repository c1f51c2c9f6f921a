// Package wire implements the length-prefixed, header-tagged binary
// serialization framework every persistent ftagsd object is built on:
// slabs, string tables, record spans, translation units, and the
// top-level project database.
//
// All primitive values are little-endian and fixed width. Compound
// objects write a Header followed by their fields in declaration order;
// readers verify the header's tag and version before touching the body.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
)

// HeaderTagSize is the fixed width, in bytes, of an object-type tag.
const HeaderTagSize = 16

// Header precedes every serialized compound object: a reserved 128-bit
// content hash (may be zero — see DESIGN.md on CursorSet's header hash),
// a 16-byte object-type tag, a format version, and the body size in
// bytes.
type Header struct {
	ContentHash [16]byte
	Tag         [HeaderTagSize]byte
	Version     uint64
	Size        uint64
}

// HeaderSize is the serialized width of a Header.
const HeaderSize = 16 + HeaderTagSize + 8 + 8

func tagBytes(tag string) [HeaderTagSize]byte {
	var out [HeaderTagSize]byte
	copy(out[:], tag)
	return out
}

// TagString returns the tag with trailing NUL padding trimmed.
func (h Header) TagString() string {
	n := 0
	for n < len(h.Tag) && h.Tag[n] != 0 {
		n++
	}
	return string(h.Tag[:n])
}

// Writer is a length-prefixed binary sink. The same interface backs both
// an in-memory buffer and a file stream; callers only need to know which
// constructor they used.
type Writer struct {
	w io.Writer
}

// BufferWriter is a Writer that accumulates into memory and exposes the
// resulting bytes via Bytes.
type BufferWriter struct {
	*Writer
	buf *bytes.Buffer
}

// NewBufferWriter creates a Writer backed by an in-memory byte buffer.
func NewBufferWriter() *BufferWriter {
	buf := &bytes.Buffer{}
	return &BufferWriter{Writer: &Writer{w: buf}, buf: buf}
}

// Bytes returns the accumulated serialized content.
func (b *BufferWriter) Bytes() []byte {
	return b.buf.Bytes()
}

// NewFileWriter creates a Writer that streams to the file at path,
// truncating any existing content.
func NewFileWriter(path string) (*Writer, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, ferrors.IOError("failed to create serialization file", err)
	}
	bw := bufio.NewWriter(f)
	w := &Writer{w: bw}
	cleanup := func() error {
		if err := bw.Flush(); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
	return w, cleanup, nil
}

// WriteHeader writes a Header with the given tag and version; size is
// filled in by the caller once the body length is known.
func (w *Writer) WriteHeader(tag string, version, size uint64) error {
	h := Header{Tag: tagBytes(tag), Version: version, Size: size}
	if err := binary.Write(w.w, binary.LittleEndian, h.ContentHash); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, h.Tag); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, h.Version); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, h.Size)
}

// WriteHeaderWithHash writes a Header carrying a caller-computed content
// hash. Most object types leave ContentHash zeroed (see Header's doc
// comment); a CursorSet is the one type that travels across a process
// boundary and verifies it on the way back in.
func (w *Writer) WriteHeaderWithHash(tag string, version, size uint64, hash [16]byte) error {
	h := Header{ContentHash: hash, Tag: tagBytes(tag), Version: version, Size: size}
	if err := binary.Write(w.w, binary.LittleEndian, h.ContentHash); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, h.Tag); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, h.Version); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, h.Size)
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) error { return binary.Write(w.w, binary.LittleEndian, v) }

// WriteUint32 writes a 32-bit little-endian value.
func (w *Writer) WriteUint32(v uint32) error { return binary.Write(w.w, binary.LittleEndian, v) }

// WriteUint64 writes a 64-bit little-endian value.
func (w *Writer) WriteUint64(v uint64) error { return binary.Write(w.w, binary.LittleEndian, v) }

// WriteBytes writes raw bytes with no length prefix.
func (w *Writer) WriteBytes(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

// WriteByteVector writes a size-prefixed ([]byte as vector<u8>) blob.
func (w *Writer) WriteByteVector(b []byte) error {
	if err := w.WriteUint64(uint64(len(b))); err != nil {
		return err
	}
	return w.WriteBytes(b)
}

// WriteString writes a u64 length followed by raw bytes.
func (w *Writer) WriteString(s string) error {
	return w.WriteByteVector([]byte(s))
}

// WriteU32Map writes a size-prefixed sequence of (u32, u32) pairs. Used
// for the slab store's address-ordered free-block map.
func (w *Writer) WriteU32Map(m map[uint32]uint32) error {
	if err := w.WriteUint64(uint64(len(m))); err != nil {
		return err
	}
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortUint32s(keys)
	for _, k := range keys {
		if err := w.WriteUint32(k); err != nil {
			return err
		}
		if err := w.WriteUint32(m[k]); err != nil {
			return err
		}
	}
	return nil
}

func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Reader is the read-side counterpart of Writer.
type Reader struct {
	r         io.Reader
	totalSize int64
	consumed  int64
}

// NewBufferReader creates a Reader over an in-memory byte slice.
func NewBufferReader(b []byte) *Reader {
	return &Reader{r: bytes.NewReader(b), totalSize: int64(len(b))}
}

// NewFileReader opens path for reading.
func NewFileReader(path string) (*Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, ferrors.IOError("failed to open serialization file", err)
	}
	info, statErr := f.Stat()
	size := int64(-1)
	if statErr == nil {
		size = info.Size()
	}
	r := &Reader{r: bufio.NewReader(f), totalSize: size}
	return r, f.Close, nil
}

// ReadHeader reads and validates a Header's tag against expectedTag.
// Returns a DeserializationMismatch error on mismatch.
func (r *Reader) ReadHeader(expectedTag string) (Header, error) {
	var h Header
	if err := r.readFull(h.ContentHash[:]); err != nil {
		return h, err
	}
	if err := r.readFull(h.Tag[:]); err != nil {
		return h, err
	}
	var err error
	if h.Version, err = r.ReadUint64(); err != nil {
		return h, err
	}
	if h.Size, err = r.ReadUint64(); err != nil {
		return h, err
	}
	if h.TagString() != expectedTag {
		return h, ferrors.DeserializationMismatchError(
			fmt.Sprintf("expected object tag %q, got %q", expectedTag, h.TagString()))
	}
	return h, nil
}

func (r *Reader) readFull(b []byte) error {
	n, err := io.ReadFull(r.r, b)
	r.consumed += int64(n)
	return err
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	var v uint8
	err := binary.Read(r.r, binary.LittleEndian, &v)
	if err == nil {
		r.consumed++
	}
	return v, err
}

// ReadUint32 reads a 32-bit little-endian value.
func (r *Reader) ReadUint32() (uint32, error) {
	var v uint32
	err := binary.Read(r.r, binary.LittleEndian, &v)
	if err == nil {
		r.consumed += 4
	}
	return v, err
}

// ReadUint64 reads a 64-bit little-endian value.
func (r *Reader) ReadUint64() (uint64, error) {
	var v uint64
	err := binary.Read(r.r, binary.LittleEndian, &v)
	if err == nil {
		r.consumed += 8
	}
	return v, err
}

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := r.readFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadByteVector reads a size-prefixed blob.
func (r *Reader) ReadByteVector() ([]byte, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// ReadString reads a size-prefixed string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadByteVector()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadU32Map reads a size-prefixed sequence of (u32, u32) pairs.
func (r *Reader) ReadU32Map() (map[uint32]uint32, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	m := make(map[uint32]uint32, n)
	for i := uint64(0); i < n; i++ {
		k, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// WriteVector writes a size-prefixed sequence of fixed-size T, raw bytes
// with no internal framing — the `vector<T>` wire shape for trivially
// copyable T (Record, a RecordSpan header, or a bare uint32 index).
func WriteVector[T any](w *Writer, items []T) error {
	if err := w.WriteUint64(uint64(len(items))); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return binary.Write(w.w, binary.LittleEndian, items)
}

// ReadVector reads back a vector written by WriteVector.
func ReadVector[T any](r *Reader) ([]T, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	items := make([]T, n)
	if n == 0 {
		return items, nil
	}
	if err := binary.Read(r.r, binary.LittleEndian, items); err != nil {
		return nil, err
	}
	if size := binary.Size(items); size > 0 {
		r.consumed += int64(size)
	}
	return items, nil
}

// AssertEmpty verifies every byte of the underlying stream has been
// consumed. Checked-build postcondition from the spec's Writer/Reader
// contract; callers in production builds may ignore the error.
func (r *Reader) AssertEmpty() error {
	if r.totalSize < 0 {
		return nil
	}
	if r.consumed != r.totalSize {
		return fmt.Errorf("wire: %d trailing bytes after deserialization", r.totalSize-r.consumed)
	}
	return nil
}
