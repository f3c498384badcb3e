package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evicted struct {
	key   uint64
	value int
	dirty bool
}

func newRecordingLRU(capacity, buckets int) (*LRU[int], *[]evicted) {
	var out []evicted
	c := NewLRU[int](capacity, buckets, func(key uint64, value int, dirty bool) {
		out = append(out, evicted{key, value, dirty})
	})
	return c, &out
}

func TestLRU_PutGet(t *testing.T) {
	c, _ := newRecordingLRU(4, 3)

	c.Put(1, 10, false)
	c.Put(2, 20, true)

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = c.Get(3)
	assert.False(t, ok)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 4, c.Cap())
	assert.True(t, c.IsDirty(2))
	assert.False(t, c.IsDirty(1))
}

func TestLRU_RecencyOrder(t *testing.T) {
	c, _ := newRecordingLRU(3, 2)
	c.Put(1, 1, false)
	c.Put(2, 2, false)
	c.Put(3, 3, false)
	assert.Equal(t, []uint64{3, 2, 1}, c.Keys())

	c.Get(1)
	assert.Equal(t, []uint64{1, 3, 2}, c.Keys())

	// peek does not promote
	c.Peek(2)
	oldest, ok := c.Oldest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), oldest)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, out := newRecordingLRU(3, 2)
	c.Put(1, 1, true)
	c.Put(2, 2, false)
	c.Put(3, 3, false)
	c.Get(1)

	c.Put(4, 4, false)
	require.Len(t, *out, 1)
	assert.Equal(t, evicted{2, 2, false}, (*out)[0])

	c.Put(5, 5, false)
	c.Put(6, 6, false)
	require.Len(t, *out, 3)
	assert.Equal(t, evicted{3, 3, false}, (*out)[1])
	assert.Equal(t, evicted{1, 1, true}, (*out)[2])

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Contains(1))
}

func TestLRU_NeverExceedsCapacity(t *testing.T) {
	c, out := newRecordingLRU(16, 5)
	for i := 0; i < 1000; i++ {
		c.Put(uint64(i*31%97), i, i%2 == 0)
		assert.LessOrEqual(t, c.Len(), c.Cap())
	}
	assert.Equal(t, 16, c.Len())
	assert.NotEmpty(t, *out)
	assert.Len(t, c.Keys(), 16)
}

func TestLRU_UpdateKeepsDirty(t *testing.T) {
	c, _ := newRecordingLRU(2, 1)
	c.Put(1, 1, true)
	c.Put(1, 2, false)
	assert.True(t, c.IsDirty(1))

	v, _ := c.Peek(1)
	assert.Equal(t, 2, v)

	c.Put(2, 2, false)
	assert.True(t, c.MarkDirty(2))
	assert.True(t, c.IsDirty(2))
	assert.False(t, c.MarkDirty(3))
}

func TestLRU_RemoveReusesSlot(t *testing.T) {
	c, out := newRecordingLRU(2, 1)
	c.Put(1, 1, true)
	c.Put(2, 2, false)

	v, ok := c.Remove(1)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Empty(t, *out, "remove must not call the evict callback")

	c.Put(3, 3, false)
	assert.Empty(t, *out)
	assert.Equal(t, []uint64{3, 2}, c.Keys())

	_, ok = c.Remove(42)
	assert.False(t, ok)
}

func TestLRU_BucketChains(t *testing.T) {
	// all keys collide in a single bucket
	c, _ := newRecordingLRU(8, 1)
	for i := uint64(0); i < 8; i++ {
		c.Put(i, int(i), false)
	}
	for i := uint64(0); i < 8; i++ {
		v, ok := c.Peek(i)
		require.True(t, ok)
		assert.Equal(t, int(i), v)
	}
	c.Remove(3)
	c.Remove(0)
	c.Remove(7)
	for _, k := range []uint64{1, 2, 4, 5, 6} {
		assert.True(t, c.Contains(k))
	}
	assert.Equal(t, 5, c.Len())
}

func TestLRU_Range(t *testing.T) {
	c, _ := newRecordingLRU(4, 2)
	c.Put(1, 10, true)
	c.Put(2, 20, false)
	c.Put(3, 30, true)

	dirty := 0
	c.Range(func(_ uint64, _ int, d bool) bool {
		if d {
			dirty++
		}
		return true
	})
	assert.Equal(t, 2, dirty)

	seen := 0
	c.Range(func(uint64, int, bool) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
}
