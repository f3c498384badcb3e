package util

import (
	"sync"
	"testing"
	"time"
)

// TestBasicOperations tests basic push and pop functionality
func TestBasicOperations(t *testing.T) {
	q := NewLockFreeMPSC[int](nil)
	defer q.Close()

	for i := 0; i < 10; i++ {
		v := i
		if !q.Push(&v) {
			t.Fatalf("Failed to push item %d", i)
		}
	}
	if q.Len() != 10 {
		t.Errorf("Expected length 10, got %d", q.Len())
	}

	for i := 0; i < 10; i++ {
		val, ok := q.TryPop()
		if !ok {
			t.Fatalf("Queue empty before item %d", i)
		}
		if *val != i {
			t.Errorf("Expected %d, got %d", i, *val)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("Queue should be empty")
	}
}

// TestConcurrentProducers verifies the queue works correctly with multiple producers
func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[[2]int](nil)
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				v := [2]int{p, i}
				q.Push(&v)
			}
		}(p)
	}

	// consume while producers are running; per producer order must hold
	next := make([]int, numProducers)
	received := 0
	deadline := time.After(5 * time.Second)
	for received < numProducers*itemsPerProducer {
		v, ok := q.TryPop()
		if !ok {
			select {
			case <-q.Notify():
			case <-deadline:
				t.Fatalf("Timeout, received %d items", received)
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		if v[1] != next[v[0]] {
			t.Fatalf("Producer %d: expected item %d, got %d", v[0], next[v[0]], v[1])
		}
		next[v[0]]++
		received++
	}
	wg.Wait()
}

// TestCloseQueue tests that pushes fail after close while queued items drain
func TestCloseQueue(t *testing.T) {
	q := NewLockFreeMPSC[int](nil)
	v := 1
	q.Push(&v)
	q.Close()

	if !q.IsClosed() {
		t.Error("Queue should report closed")
	}
	w := 2
	if q.Push(&w) {
		t.Error("Push after close should fail")
	}
	if got, ok := q.TryPop(); !ok || *got != 1 {
		t.Error("Queued item should survive close")
	}
}

// TestSharedNotify tests that several queues can wake one consumer
func TestSharedNotify(t *testing.T) {
	notify := make(chan struct{}, 1)
	a := NewLockFreeMPSC[int](notify)
	b := NewLockFreeMPSC[int](notify)

	v := 7
	go b.Push(&v)

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("Shared notify was not signalled")
	}
	if _, ok := a.TryPop(); ok {
		t.Error("Queue a should be empty")
	}
	if got, ok := b.TryPop(); !ok || *got != 7 {
		t.Error("Queue b should hold the pushed item")
	}
}

// TestNilPush tests that nil values are rejected
func TestNilPush(t *testing.T) {
	q := NewLockFreeMPSC[int](nil)
	if q.Push(nil) {
		t.Error("Push(nil) should fail")
	}
}
