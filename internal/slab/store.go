// Package slab implements the segmented arena allocator every persistent
// ftagsd structure is built on: string tables, path tables, and record
// spans all allocate their backing storage from a slab.Store.
//
// A Store hands out opaque Key values instead of pointers or slice
// indices. It only guarantees that live allocations do not overlap; it
// does not track what callers do with the space, beyond what is needed
// to manage and recycle free blocks.
package slab

import (
	"sort"

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// Key identifies a block of T inside a Store. It packs a segment index
// into the high bits and an offset within that segment into the low
// bits, the split governed by the Store's segmentBits.
type Key uint32

// InvalidKey never identifies a live allocation.
const InvalidKey Key = 0

// FirstKeyValue is the first offset handed out within any segment; the
// four low values below it are reserved so InvalidKey can never collide
// with a real allocation regardless of which segment it falls in.
const FirstKeyValue = 4

// DefaultSegmentBits sizes a production segment at 16Mi elements.
const DefaultSegmentBits = 24

// block is a free run of size units of T starting at key.
type block struct {
	key  Key
	size uint32
}

// Store allocates contiguous runs of T and recycles freed ones with a
// best-fit, coalescing free list, following the same shape as ftags'
// C++ Store<T, K> template, adapted to Go's lack of non-type generic
// parameters: segmentBits and the segment/capacity ceiling are instance
// fields rather than template constants.
type Store[T any] struct {
	segmentBits uint32
	segmentSize uint32
	maxSegments uint32

	segments   [][]T
	freeBlocks []block // kept sorted ascending by size for best-fit lookup
}

// NewStore creates a Store whose segments hold 1<<segmentBits elements
// each, up to maxSegments segments total. A zero maxSegments means "as
// many as a Key can address".
func NewStore[T any](segmentBits uint32, maxSegments uint32) *Store[T] {
	ceiling := uint32(1) << (32 - segmentBits)
	if maxSegments == 0 || maxSegments > ceiling {
		maxSegments = ceiling
	}
	s := &Store[T]{
		segmentBits: segmentBits,
		segmentSize: 1 << segmentBits,
		maxSegments: maxSegments,
	}
	return s
}

func (s *Store[T]) offsetMask() uint32 {
	return s.segmentSize - 1
}

func (s *Store[T]) segmentIndex(key Key) uint32 {
	return uint32(key) >> s.segmentBits
}

func (s *Store[T]) offsetInSegment(key Key) uint32 {
	return uint32(key) & s.offsetMask()
}

func (s *Store[T]) makeKey(segmentIndex, offsetInSegment uint32) Key {
	return Key((segmentIndex << s.segmentBits) | offsetInSegment)
}

func (s *Store[T]) isAdjacent(left, right block) bool {
	if s.segmentIndex(left.key) != s.segmentIndex(right.key) {
		return false
	}
	return s.offsetInSegment(left.key)+left.size == s.offsetInSegment(right.key)
}

// addSegment grows the store by one segment, registering its full span
// (less the FirstKeyValue reservation) as a single free block.
func (s *Store[T]) addSegment() error {
	segmentsInUse := uint32(len(s.segments))
	if segmentsInUse >= s.maxSegments {
		return ferrors.CapacityExceeded("slab store: exceeded segment capacity")
	}

	s.segments = append(s.segments, make([]T, s.segmentSize))

	key := s.makeKey(segmentsInUse, FirstKeyValue)
	s.insertFreeBlock(block{key: key, size: s.segmentSize - FirstKeyValue})
	return nil
}

func (s *Store[T]) insertFreeBlock(b block) {
	i := sort.Search(len(s.freeBlocks), func(i int) bool { return s.freeBlocks[i].size >= b.size })
	s.freeBlocks = append(s.freeBlocks, block{})
	copy(s.freeBlocks[i+1:], s.freeBlocks[i:])
	s.freeBlocks[i] = b
}

func (s *Store[T]) removeFreeBlockAt(i int) {
	s.freeBlocks = append(s.freeBlocks[:i], s.freeBlocks[i+1:]...)
}

func (s *Store[T]) findFreeBlockByKey(key Key) int {
	for i, b := range s.freeBlocks {
		if b.key == key {
			return i
		}
	}
	return -1
}

// Allocate reserves size contiguous units of T and returns the key
// identifying the run.
func (s *Store[T]) Allocate(size uint32) (Key, error) {
	if size == 0 {
		return InvalidKey, ferrors.InvalidKeyError("slab store: cannot allocate zero-sized run")
	}
	if size >= s.segmentSize {
		return InvalidKey, ferrors.CapacityExceeded("slab store: run does not fit in a single segment")
	}

	i := sort.Search(len(s.freeBlocks), func(i int) bool { return s.freeBlocks[i].size >= size })
	if i == len(s.freeBlocks) {
		if err := s.addSegment(); err != nil {
			return InvalidKey, err
		}
		return s.Allocate(size)
	}

	b := s.freeBlocks[i]
	key := b.key
	segIdx := s.segmentIndex(key)
	offset := s.offsetInSegment(key)

	if b.size == size {
		s.removeFreeBlockAt(i)
	} else {
		remainder := block{key: s.makeKey(segIdx, offset+size), size: b.size - size}
		s.removeFreeBlockAt(i)
		s.insertFreeBlock(remainder)
	}

	return key, nil
}

// Get returns the live slice of size T starting at key.
func (s *Store[T]) Get(key Key, size uint32) ([]T, error) {
	if key == InvalidKey {
		return nil, ferrors.InvalidKeyError("slab store: key 0 is invalid")
	}
	segIdx := s.segmentIndex(key)
	if segIdx >= uint32(len(s.segments)) {
		return nil, ferrors.InvalidKeyError("slab store: segment index out of range")
	}
	offset := s.offsetInSegment(key)
	segment := s.segments[segIdx]
	if offset+size > uint32(len(segment)) {
		return nil, ferrors.InvalidKeyError("slab store: run extends past segment end")
	}
	return segment[offset : offset+size], nil
}

// AvailableAfter reports how many units are free immediately following
// the size-unit run at key — zero if none, non-zero if Extend would
// succeed for some newSize up to oldSize+result.
func (s *Store[T]) AvailableAfter(key Key, size uint32) uint32 {
	if key == InvalidKey {
		return 0
	}
	segIdx := s.segmentIndex(key)
	offset := s.offsetInSegment(key)
	candidate := s.makeKey(segIdx, offset+size)
	if i := s.findFreeBlockByKey(candidate); i >= 0 {
		return s.freeBlocks[i].size
	}
	return 0
}

// Extend grows the run at key from oldSize to newSize in place,
// consuming the free block that immediately follows it. Returns
// NotExtendableError if no such block exists or it is too small.
func (s *Store[T]) Extend(key Key, oldSize, newSize uint32) error {
	if key == InvalidKey {
		return ferrors.InvalidKeyError("slab store: key 0 is invalid")
	}
	if newSize <= oldSize {
		return ferrors.InvalidKeyError("slab store: extend requires newSize > oldSize")
	}

	segIdx := s.segmentIndex(key)
	offset := s.offsetInSegment(key)
	candidate := s.makeKey(segIdx, offset+oldSize)

	i := s.findFreeBlockByKey(candidate)
	if i < 0 {
		return ferrors.NotExtendableError("slab store: no free block follows this run")
	}

	following := s.freeBlocks[i]
	increase := newSize - oldSize
	if increase > following.size {
		return ferrors.NotExtendableError("slab store: following free block is too small")
	}

	if increase == following.size {
		s.removeFreeBlockAt(i)
	} else {
		remainder := block{key: s.makeKey(segIdx, offset+newSize), size: following.size - increase}
		s.removeFreeBlockAt(i)
		s.insertFreeBlock(remainder)
	}
	return nil
}

// Deallocate returns the size-unit run at key to the free list,
// coalescing it with any adjacent free blocks.
func (s *Store[T]) Deallocate(key Key, size uint32) {
	newBlock := block{key: key, size: size}

	prevIdx, nextIdx := -1, -1
	for i, b := range s.freeBlocks {
		if s.isAdjacent(b, newBlock) {
			prevIdx = i
		}
		if s.isAdjacent(newBlock, b) {
			nextIdx = i
		}
	}

	switch {
	case prevIdx < 0 && nextIdx < 0:
		s.insertFreeBlock(newBlock)
	case prevIdx >= 0 && nextIdx >= 0:
		merged := block{key: s.freeBlocks[prevIdx].key, size: s.freeBlocks[prevIdx].size + size + s.freeBlocks[nextIdx].size}
		if prevIdx > nextIdx {
			s.removeFreeBlockAt(prevIdx)
			s.removeFreeBlockAt(nextIdx)
		} else {
			s.removeFreeBlockAt(nextIdx)
			s.removeFreeBlockAt(prevIdx)
		}
		s.insertFreeBlock(merged)
	case prevIdx >= 0:
		merged := block{key: s.freeBlocks[prevIdx].key, size: s.freeBlocks[prevIdx].size + size}
		s.removeFreeBlockAt(prevIdx)
		s.insertFreeBlock(merged)
	default:
		merged := block{key: key, size: size + s.freeBlocks[nextIdx].size}
		s.removeFreeBlockAt(nextIdx)
		s.insertFreeBlock(merged)
	}
}

// ForEachAllocatedRun visits every live (non-free) run in address order,
// derived as the complement of the free list within each segment. Used
// to rebuild secondary indexes (hash tables, symbol/file multimaps) on
// load, since those are never serialized directly.
func (s *Store[T]) ForEachAllocatedRun(fn func(key Key, run []T)) {
	bySegment := make(map[uint32][]block, len(s.segments))
	for _, b := range s.freeBlocks {
		segIdx := s.segmentIndex(b.key)
		bySegment[segIdx] = append(bySegment[segIdx], b)
	}

	for segIdx, segment := range s.segments {
		free := bySegment[uint32(segIdx)]
		sort.Slice(free, func(i, j int) bool {
			return s.offsetInSegment(free[i].key) < s.offsetInSegment(free[j].key)
		})

		cursor := uint32(FirstKeyValue)
		for _, b := range free {
			start := s.offsetInSegment(b.key)
			if start > cursor {
				key := s.makeKey(uint32(segIdx), cursor)
				fn(key, segment[cursor:start])
			}
			cursor = start + b.size
		}
		if cursor < uint32(len(segment)) {
			key := s.makeKey(uint32(segIdx), cursor)
			fn(key, segment[cursor:])
		}
	}
}

// StoreTag and StoreVersion are the header tag/version callers should
// use when framing a Serialize/Deserialize call with wire.WriteHeader.
const StoreTag = "ftags.slab.Store"
const StoreVersion = 1

// Serialize writes the store's segments and free list. Live data is
// written verbatim per segment; ForEachAllocatedRun rebuilds any
// secondary index callers need afterward.
func (s *Store[T]) Serialize(w *wire.Writer) error {
	if err := w.WriteUint32(s.segmentBits); err != nil {
		return err
	}
	if err := w.WriteUint32(s.maxSegments); err != nil {
		return err
	}
	if err := w.WriteUint64(uint64(len(s.segments))); err != nil {
		return err
	}
	for _, segment := range s.segments {
		if err := wire.WriteVector(w, segment); err != nil {
			return err
		}
	}

	freeMap := make(map[uint32]uint32, len(s.freeBlocks))
	for _, b := range s.freeBlocks {
		freeMap[uint32(b.key)] = b.size
	}
	return w.WriteU32Map(freeMap)
}

// Deserialize reconstructs a Store previously written by Serialize.
func Deserialize[T any](r *wire.Reader) (*Store[T], error) {
	segmentBits, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	maxSegments, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	segmentCount, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}

	s := NewStore[T](segmentBits, maxSegments)
	for i := uint64(0); i < segmentCount; i++ {
		segment, err := wire.ReadVector[T](r)
		if err != nil {
			return nil, err
		}
		s.segments = append(s.segments, segment)
	}

	freeMap, err := r.ReadU32Map()
	if err != nil {
		return nil, err
	}
	for k, v := range freeMap {
		s.insertFreeBlock(block{key: Key(k), size: v})
	}
	return s, nil
}
