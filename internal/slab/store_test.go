package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x8000-0000/ftagsd/internal/wire"
)

func serializeToBuffer(t *testing.T, store *Store[uint32]) []byte {
	t.Helper()
	bw := wire.NewBufferWriter()
	require.NoError(t, store.Serialize(bw.Writer))
	return bw.Bytes()
}

func deserializeFromBuffer(t *testing.T, buf []byte) *Store[uint32] {
	t.Helper()
	r := wire.NewBufferReader(buf)
	restored, err := Deserialize[uint32](r)
	require.NoError(t, err)
	require.NoError(t, r.AssertEmpty())
	return restored
}

func TestStore_FirstAllocationReturnsFirstKeyValue(t *testing.T) {
	store := NewStore[uint32](5, 0)

	key, err := store.Allocate(8)
	require.NoError(t, err)
	assert.Equal(t, Key(FirstKeyValue), key)
}

func TestStore_S1_BestFitScenario(t *testing.T) {
	// spec.md S1: segment-bits=5 (28 user slots after the FirstKeyValue
	// reservation), allocate 8, 16, 4 -> keys 4, 12, 28. Deallocate the
	// size-16 block at 12. Allocate 4 -> key 12. Allocate 8 -> key 16.
	store := NewStore[uint32](5, 0)

	k1, err := store.Allocate(8)
	require.NoError(t, err)
	assert.Equal(t, Key(4), k1)

	k2, err := store.Allocate(16)
	require.NoError(t, err)
	assert.Equal(t, Key(12), k2)

	k3, err := store.Allocate(4)
	require.NoError(t, err)
	assert.Equal(t, Key(28), k3)

	store.Deallocate(k2, 16)

	k4, err := store.Allocate(4)
	require.NoError(t, err)
	assert.Equal(t, Key(12), k4)

	k5, err := store.Allocate(8)
	require.NoError(t, err)
	assert.Equal(t, Key(16), k5)
}

func TestStore_BlockIsRecycled(t *testing.T) {
	store := NewStore[uint32](24, 0)

	k1, err := store.Allocate(8)
	require.NoError(t, err)

	store.Deallocate(k1, 8)

	k2, err := store.Allocate(8)
	require.NoError(t, err)
	assert.Equal(t, Key(FirstKeyValue), k2)
}

func TestStore_DeletedBlocksAreCoalesced(t *testing.T) {
	store := NewStore[uint32](24, 0)

	k1, err := store.Allocate(8)
	require.NoError(t, err)
	k2, err := store.Allocate(8)
	require.NoError(t, err)

	store.Deallocate(k1, 8)
	store.Deallocate(k2, 8)

	k3, err := store.Allocate(16)
	require.NoError(t, err)
	assert.Equal(t, Key(FirstKeyValue), k3)
}

func TestStore_GetReturnsAllocatedRun(t *testing.T) {
	store := NewStore[byte](24, 0)

	key, err := store.Allocate(5)
	require.NoError(t, err)

	run, err := store.Get(key, 5)
	require.NoError(t, err)
	require.Len(t, run, 5)

	copy(run, []byte("hello"))
	run2, err := store.Get(key, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(run2))
}

func TestStore_GetInvalidKey(t *testing.T) {
	store := NewStore[uint32](24, 0)

	_, err := store.Get(InvalidKey, 1)
	assert.Error(t, err)
}

func TestStore_AvailableAfterAndExtend(t *testing.T) {
	store := NewStore[uint32](24, 0)

	k1, err := store.Allocate(8)
	require.NoError(t, err)
	k2, err := store.Allocate(8)
	require.NoError(t, err)
	// pin the block after k2 so freeing k2 leaves exactly 8 free slots
	// after k1 instead of coalescing with the segment's trailing free run
	_, err = store.Allocate(8)
	require.NoError(t, err)

	store.Deallocate(k2, 8)

	assert.Equal(t, uint32(8), store.AvailableAfter(k1, 8))

	err = store.Extend(k1, 8, 12)
	require.NoError(t, err)

	assert.Equal(t, uint32(4), store.AvailableAfter(k1, 12))
}

func TestStore_ExtendFailsWithoutFollowingFreeBlock(t *testing.T) {
	store := NewStore[uint32](24, 0)

	k1, err := store.Allocate(8)
	require.NoError(t, err)
	_, err = store.Allocate(8) // occupies the block immediately after k1

	err = store.Extend(k1, 8, 16)
	assert.Error(t, err)
}

func TestStore_CapacityExceededWhenSegmentsExhausted(t *testing.T) {
	store := NewStore[uint32](5, 1)

	_, err := store.Allocate(8)
	require.NoError(t, err)

	// the single segment has 28 user slots (32 - FirstKeyValue); this
	// request would fit a fresh segment but not the 20 slots that remain,
	// and maxSegments forbids growth.
	_, err = store.Allocate(24)
	assert.Error(t, err)
}

func TestStore_ForEachAllocatedRun(t *testing.T) {
	store := NewStore[uint32](5, 0)

	k1, err := store.Allocate(8)
	require.NoError(t, err)
	_, err = store.Allocate(16)
	require.NoError(t, err)

	store.Deallocate(k1, 8)

	seen := map[Key]int{}
	store.ForEachAllocatedRun(func(key Key, run []uint32) {
		seen[key] = len(run)
	})

	require.Len(t, seen, 1)
	assert.Equal(t, 16, seen[Key(12)])
}

func TestStore_SerializeDeserializeRoundTrip(t *testing.T) {
	store := NewStore[uint32](10, 0)

	k1, err := store.Allocate(4)
	require.NoError(t, err)
	run, err := store.Get(k1, 4)
	require.NoError(t, err)
	copy(run, []uint32{1, 2, 3, 4})

	k2, err := store.Allocate(4)
	require.NoError(t, err)
	store.Deallocate(k2, 4)

	buf := serializeToBuffer(t, store)

	restored := deserializeFromBuffer(t, buf)

	got, err := restored.Get(k1, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3, 4}, got)

	assert.Greater(t, restored.AvailableAfter(k1, 4), uint32(0))
}
