package util

import (
	"sort"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[int]()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}
	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}
	if len(mh.itemsMap) != 0 {
		t.Errorf("New heap's map should be empty, but has %d items", len(mh.itemsMap))
	}
}

// TestPushAndPeek tests adding items and reading the minimum
func TestPushAndPeek(t *testing.T) {
	mh := NewMapHeap[int]()

	mh.Push(1, 100)
	mh.Push(2, 200)
	mh.Push(3, 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}
	for _, k := range []int{1, 2, 3} {
		if !mh.Contains(k) {
			t.Errorf("Heap should contain key %d", k)
		}
	}

	head, ok := mh.Peek()
	if !ok {
		t.Fatal("Peek() should return an item")
	}
	if head.Key != 3 || head.Priority != 50 {
		t.Errorf("Expected min item to be (3,50), got (%d,%d)", head.Key, head.Priority)
	}
}

// TestUpdate tests lowering and raising priorities of existing items
func TestUpdate(t *testing.T) {
	mh := NewMapHeap[int]()

	mh.Push(1, 100)
	mh.Push(2, 200)

	if !mh.Update(1, 300) {
		t.Fatal("Update should succeed for key 1")
	}
	head, _ := mh.Peek()
	if head.Key != 2 {
		t.Errorf("Min item should now be key 2, got %d", head.Key)
	}

	mh.Push(2, 500) // push on an existing key updates it
	head, _ = mh.Peek()
	if head.Key != 1 || head.Priority != 300 {
		t.Errorf("Min item should now be (1,300), got (%d,%d)", head.Key, head.Priority)
	}

	if mh.Update(99, 1) {
		t.Error("Update should fail for unknown key")
	}
}

// TestTieBreak tests that equal priorities pop in insertion order
func TestTieBreak(t *testing.T) {
	mh := NewMapHeap[int]()
	for _, k := range []int{9, 4, 7, 1} {
		mh.Push(k, 10)
	}
	mh.Push(5, 11)
	mh.Update(5, 10) // keeps its later sequence

	var got []int
	for mh.Len() > 0 {
		k, _, _ := mh.Pop()
		got = append(got, k)
	}
	want := []int{9, 4, 7, 1, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Pop order %v, expected %v", got, want)
		}
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[int]()

	mh.Push(1, 100)
	mh.Push(2, 200)
	mh.Push(3, 300)

	value, exists := mh.RemoveByKey(2)
	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}
	if value != 200 {
		t.Errorf("RemoveByKey should return value 200, got %d", value)
	}
	if mh.Len() != 2 {
		t.Errorf("Heap should have 2 items after removal, has %d", mh.Len())
	}
	if mh.Contains(2) {
		t.Error("Heap should not contain key 2 after removal")
	}
	if _, exists = mh.RemoveByKey(99); exists {
		t.Error("RemoveByKey should return false for non-existent key")
	}
}

// TestPopOrder tests if items are popped in correct order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[int]()

	items := []struct {
		key   int
		value uint64
	}{
		{5, 50},
		{3, 30},
		{1, 10},
		{4, 40},
		{2, 20},
	}
	for _, it := range items {
		mh.Push(it.key, it.value)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].value < items[j].value
	})

	for i, expected := range items {
		key, prio, ok := mh.Pop()
		if !ok {
			t.Fatalf("Heap empty after %d items, expected %d items", i, len(items))
		}
		if key != expected.key || prio != expected.value {
			t.Errorf("Pop %d: expected (%d,%d), got (%d,%d)", i, expected.key, expected.value, key, prio)
		}
	}

	if _, _, ok := mh.Pop(); ok {
		t.Error("Pop on empty heap should return ok=false")
	}
	if len(mh.itemsMap) != 0 {
		t.Errorf("Map should be empty after popping all items, has %d", len(mh.itemsMap))
	}
}

// TestGetByKey tests retrieving items by key
func TestGetByKey(t *testing.T) {
	mh := NewMapHeap[int]()

	mh.Push(1, 100)
	mh.Push(2, 200)

	it, exists := mh.GetByKey(1)
	if !exists {
		t.Fatal("GetByKey should find existing key")
	}
	if it.Key != 1 || it.Priority != 100 {
		t.Errorf("GetByKey returned incorrect item: expected (1,100), got (%d,%d)", it.Key, it.Priority)
	}
	if _, exists = mh.GetByKey(99); exists {
		t.Error("GetByKey should return exists=false for non-existent key")
	}
}

// TestManyUpdates keeps a large heap consistent under random priority changes
func TestManyUpdates(t *testing.T) {
	mh := NewMapHeap[int]()
	const n = 1000
	for i := 0; i < n; i++ {
		mh.Push(i, uint64((i*7919)%n))
	}
	for i := 0; i < n; i += 3 {
		mh.Update(i, uint64(i%17))
	}

	var last uint64
	for i := 0; mh.Len() > 0; i++ {
		_, prio, _ := mh.Pop()
		if i > 0 && prio < last {
			t.Fatalf("Heap order violated: %d after %d", prio, last)
		}
		last = prio
	}
}
