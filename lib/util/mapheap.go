// Package util
//
// This file provides the priority queue used for victim selection.
//
// The implementation combines a binary heap with a position map so that an
// entry can be looked up, re-prioritized or removed by key in O(log n) while
// the minimum stays available in O(1). Garbage collectors use it to keep
// reclaimable units ordered by their valid page count: every invalidation
// lowers a unit's priority through Update, and the collector peeks the head
// to decide whether reclaiming is worth it.
//
// Entries with equal priority are ordered by insertion sequence, so the
// oldest candidate wins a tie.
//
// Example usage:
//
//	victims := NewMapHeap[int]()
//
//	victims.Push(7, 12) // unit 7 with 12 valid pages
//	victims.Push(3, 40)
//	victims.Update(3, 2) // unit 3 lost pages
//
//	if head, ok := victims.Peek(); ok {
//	    unit, _, _ := victims.Pop() // == head.Key
//	}
//
// Note: This implementation is not thread-safe.
package util

import (
	"container/heap"
	"fmt"
)

// Item is one entry of a MapHeap
type Item[K comparable] struct {
	Key      K      // Unique identifier for the item
	Priority uint64 // Lower values are popped first
	seq      uint64 // Insertion sequence, used as tiebreak
	index    int    // Index in the heap, maintained by heap package
}

func (i *Item[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap with key-based access
type MapHeap[K comparable] struct {
	items    []*Item[K]
	itemsMap map[K]*Item[K]
	seq      uint64
}

// NewMapHeap creates a new empty heap
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*Item[K], 0),
		itemsMap: make(map[K]*Item[K]),
	}
}

// --------------------------------------------------------------------------
// heap.Interface
// --------------------------------------------------------------------------

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap[K]) Len() int { return len(mh.items) }

// Less compares items by priority, then by insertion order (part of heap.Interface)
func (mh *MapHeap[K]) Less(i, j int) bool {
	a, b := mh.items[i], mh.items[j]
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.seq < b.seq
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap[K]) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// push is the heap.Interface Push
func (mh *MapHeap[K]) push(x any) {
	it := x.(*Item[K])
	it.index = len(mh.items)
	mh.items = append(mh.items, it)
	mh.itemsMap[it.Key] = it
}

// pop is the heap.Interface Pop
func (mh *MapHeap[K]) pop() any {
	old := mh.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	mh.items = old[:n-1]
	delete(mh.itemsMap, it.Key)
	return it
}

// heapAdapter exposes the unexported push/pop under the names container/heap expects,
// keeping Push/Pop free for the typed API below.
type heapAdapter[K comparable] struct{ *MapHeap[K] }

func (a heapAdapter[K]) Push(x any) { a.push(x) }
func (a heapAdapter[K]) Pop() any   { return a.pop() }

// --------------------------------------------------------------------------
// Typed API
// --------------------------------------------------------------------------

// Push adds a new item or updates the priority of an existing one
func (mh *MapHeap[K]) Push(key K, priority uint64) {
	if it, exists := mh.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(heapAdapter[K]{mh}, it.index)
		return
	}
	mh.seq++
	heap.Push(heapAdapter[K]{mh}, &Item[K]{Key: key, Priority: priority, seq: mh.seq})
}

// Update changes the priority of an existing item. Returns false if the key is unknown.
func (mh *MapHeap[K]) Update(key K, priority uint64) bool {
	it, exists := mh.itemsMap[key]
	if !exists {
		return false
	}
	it.Priority = priority
	heap.Fix(heapAdapter[K]{mh}, it.index)
	return true
}

// Pop removes and returns the minimum item
func (mh *MapHeap[K]) Pop() (key K, priority uint64, ok bool) {
	if len(mh.items) == 0 {
		return key, 0, false
	}
	it := heap.Pop(heapAdapter[K]{mh}).(*Item[K])
	return it.Key, it.Priority, true
}

// RemoveByKey removes an item by its key
func (mh *MapHeap[K]) RemoveByKey(key K) (uint64, bool) {
	it, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(heapAdapter[K]{mh}, it.index)
	return it.Priority, true
}

// Peek returns the minimum item without removing it
func (mh *MapHeap[K]) Peek() (Item[K], bool) {
	if len(mh.items) == 0 {
		return Item[K]{}, false
	}
	return *mh.items[0], true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap[K]) Contains(key K) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap[K]) GetByKey(key K) (Item[K], bool) {
	it, exists := mh.itemsMap[key]
	if !exists {
		return Item[K]{}, false
	}
	return *it, true
}
