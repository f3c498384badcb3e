package util

// ----------------------------------------------------------------------------
// Index based LRU
// ----------------------------------------------------------------------------

// nilIndex marks the absence of a slot in the bucket chains and the recency list
const nilIndex int32 = -1

// lruSlot is a single record in the dense slot array. The slot participates in
// two intrusive lists: the hash chain of its bucket (hnext) and the recency list
// (prev/next). Unused slots are linked through next on the free list.
type lruSlot[V any] struct {
	key   uint64
	value V
	dirty bool
	used  bool
	prev  int32
	next  int32
	hnext int32
}

// EvictFunc is called with the least recently used record before it is dropped.
// dirty reports whether the record was modified since it was inserted clean.
type EvictFunc[V any] func(key uint64, value V, dirty bool)

// LRU is a capacity bounded cache keyed by uint64. Records live in a fixed slot
// array, buckets are selected by key modulo the bucket count and chained by
// slot index. The head of the recency list is the most recently used record.
//
// Thread-safety: LRU is not safe for concurrent use.
type LRU[V any] struct {
	slots   []lruSlot[V]
	buckets []int32
	head    int32 // MRU
	tail    int32 // LRU
	free    int32
	size    int
	onEvict EvictFunc[V]
}

// NewLRU creates a cache holding up to capacity records spread over the given number of buckets
func NewLRU[V any](capacity, buckets int, onEvict EvictFunc[V]) *LRU[V] {
	if capacity <= 0 {
		panic("lru capacity must be positive")
	}
	if buckets <= 0 {
		buckets = 1
	}
	c := &LRU[V]{
		slots:   make([]lruSlot[V], capacity),
		buckets: make([]int32, buckets),
		head:    nilIndex,
		tail:    nilIndex,
		free:    0,
		onEvict: onEvict,
	}
	for i := range c.buckets {
		c.buckets[i] = nilIndex
	}
	for i := range c.slots {
		c.slots[i].next = int32(i + 1)
		c.slots[i].prev = nilIndex
		c.slots[i].hnext = nilIndex
	}
	c.slots[capacity-1].next = nilIndex
	return c
}

// Len returns the number of cached records
func (c *LRU[V]) Len() int { return c.size }

// Cap returns the maximum number of records
func (c *LRU[V]) Cap() int { return len(c.slots) }

// Get returns the value for key and promotes the record to most recently used
func (c *LRU[V]) Get(key uint64) (V, bool) {
	idx := c.find(key)
	if idx == nilIndex {
		var zero V
		return zero, false
	}
	c.moveToFront(idx)
	return c.slots[idx].value, true
}

// Peek returns the value for key without touching the recency order
func (c *LRU[V]) Peek(key uint64) (V, bool) {
	idx := c.find(key)
	if idx == nilIndex {
		var zero V
		return zero, false
	}
	return c.slots[idx].value, true
}

// Contains reports whether key is cached
func (c *LRU[V]) Contains(key uint64) bool {
	return c.find(key) != nilIndex
}

// IsDirty reports whether the record for key is cached and dirty
func (c *LRU[V]) IsDirty(key uint64) bool {
	idx := c.find(key)
	return idx != nilIndex && c.slots[idx].dirty
}

// Put stores value under key and promotes the record. An existing record keeps its
// dirty flag unless dirty is set. When the cache is full the least recently used
// record is evicted first.
func (c *LRU[V]) Put(key uint64, value V, dirty bool) {
	if idx := c.find(key); idx != nilIndex {
		s := &c.slots[idx]
		s.value = value
		s.dirty = s.dirty || dirty
		c.moveToFront(idx)
		return
	}

	if c.size == len(c.slots) {
		c.evict()
	}

	idx := c.free
	s := &c.slots[idx]
	c.free = s.next
	s.key = key
	s.value = value
	s.dirty = dirty
	s.used = true

	b := c.bucket(key)
	s.hnext = c.buckets[b]
	c.buckets[b] = idx

	c.addToFront(idx)
	c.size++
}

// MarkDirty flags the record for key as dirty. Returns false if key is not cached.
func (c *LRU[V]) MarkDirty(key uint64) bool {
	idx := c.find(key)
	if idx == nilIndex {
		return false
	}
	c.slots[idx].dirty = true
	return true
}

// Remove drops the record for key without calling the evict callback
func (c *LRU[V]) Remove(key uint64) (V, bool) {
	idx := c.find(key)
	if idx == nilIndex {
		var zero V
		return zero, false
	}
	value := c.slots[idx].value
	c.release(idx)
	return value, true
}

// Oldest returns the key of the least recently used record
func (c *LRU[V]) Oldest() (uint64, bool) {
	if c.tail == nilIndex {
		return 0, false
	}
	return c.slots[c.tail].key, true
}

// Keys returns all keys ordered from most to least recently used
func (c *LRU[V]) Keys() []uint64 {
	keys := make([]uint64, 0, c.size)
	for idx := c.head; idx != nilIndex; idx = c.slots[idx].next {
		keys = append(keys, c.slots[idx].key)
	}
	return keys
}

// Range calls fn for every record from most to least recently used until fn returns false
func (c *LRU[V]) Range(fn func(key uint64, value V, dirty bool) bool) {
	for idx := c.head; idx != nilIndex; idx = c.slots[idx].next {
		s := &c.slots[idx]
		if !fn(s.key, s.value, s.dirty) {
			return
		}
	}
}

// ----------------------------------------------------------------------------
// internals
// ----------------------------------------------------------------------------

func (c *LRU[V]) bucket(key uint64) int {
	return int(key % uint64(len(c.buckets)))
}

func (c *LRU[V]) find(key uint64) int32 {
	for idx := c.buckets[c.bucket(key)]; idx != nilIndex; idx = c.slots[idx].hnext {
		if c.slots[idx].key == key {
			return idx
		}
	}
	return nilIndex
}

// evict hands the tail record to the callback and releases its slot.
// The record is still findable while the callback runs.
func (c *LRU[V]) evict() {
	idx := c.tail
	s := c.slots[idx]
	if c.onEvict != nil {
		c.onEvict(s.key, s.value, s.dirty)
	}
	c.release(idx)
}

// release unlinks a slot from its bucket chain and the recency list and frees it
func (c *LRU[V]) release(idx int32) {
	s := &c.slots[idx]

	b := c.bucket(s.key)
	if c.buckets[b] == idx {
		c.buckets[b] = s.hnext
	} else {
		for p := c.buckets[b]; p != nilIndex; p = c.slots[p].hnext {
			if c.slots[p].hnext == idx {
				c.slots[p].hnext = s.hnext
				break
			}
		}
	}

	c.removeFromList(idx)

	var zero V
	s.value = zero
	s.used = false
	s.dirty = false
	s.hnext = nilIndex
	s.prev = nilIndex
	s.next = c.free
	c.free = idx
	c.size--
}

func (c *LRU[V]) moveToFront(idx int32) {
	if c.head == idx {
		return
	}
	c.removeFromList(idx)
	c.addToFront(idx)
}

func (c *LRU[V]) addToFront(idx int32) {
	s := &c.slots[idx]
	s.prev = nilIndex
	s.next = c.head
	if c.head != nilIndex {
		c.slots[c.head].prev = idx
	}
	c.head = idx
	if c.tail == nilIndex {
		c.tail = idx
	}
}

func (c *LRU[V]) removeFromList(idx int32) {
	s := &c.slots[idx]
	if s.prev != nilIndex {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}
	if s.next != nilIndex {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}
	s.prev = nilIndex
	s.next = nilIndex
}
