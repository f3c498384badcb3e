// LockFreeMPSC is a lock-free Multi-Producer Single-Consumer (MPSC) queue.
//
// Features and Guarantees:
//
//   - Lock-Free: producers append with CAS on the tail, the consumer never blocks them
//   - Unbounded Size: the queue can grow to any size as needed, limited only by available memory
//   - Thread-Safe writes: Allows any number of goroutines to safely Push() concurrently
//   - Single Consumer: exactly one goroutine may call TryPop().
//   - Pull based: the consumer drains with TryPop() and waits on Notify() when the queue is empty,
//     which lets one consumer poll several queues in a fixed order.
//   - No Strict FIFO Guarantee across producers: concurrent Push() calls are ordered by which
//     producer wins the CAS, items from one producer stay in order.

package util

import (
	"runtime"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue
type LockFreeMPSC[T any] struct {
	head   atomic.Pointer[node[T]] // owned by the consumer
	tail   atomic.Pointer[node[T]]
	length atomic.Int64
	closed atomic.Bool
	notify chan struct{}
}

// NewLockFreeMPSC creates a new queue. notify is signalled (non-blocking) after every
// successful Push; pass nil to let the queue create its own channel. Several queues may
// share one notify channel so a single consumer can sleep on all of them.
func NewLockFreeMPSC[T any](notify chan struct{}) *LockFreeMPSC[T] {
	sentinel := &node[T]{}
	if notify == nil {
		notify = make(chan struct{}, 1)
	}
	q := &LockFreeMPSC[T]{notify: notify}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Push adds an item to the queue.
// Returns true if the item was added, or false if the queue is closed or value is nil.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// may fail if another producer already helped, tail still moves forward
				q.tail.CompareAndSwap(tailNode, newNode)
				q.length.Add(1)
				q.signal()
				return true
			}
		} else {
			// help a producer that appended but has not swung the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin briefly under low contention, then yield
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// TryPop removes the oldest item. Returns false if the queue is currently empty.
//
// Thread-safety: Only a single goroutine may call TryPop.
func (q *LockFreeMPSC[T]) TryPop() (*T, bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil, false
	}
	value := next.value
	q.head.Store(next)
	next.value = nil // help go gc, next is the new sentinel
	q.length.Add(-1)
	return value, true
}

// Notify returns the channel signalled after pushes
func (q *LockFreeMPSC[T]) Notify() <-chan struct{} {
	return q.notify
}

// Close closes the queue, preventing further writes.
// Items already in the queue can still be popped.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.signal()
}

// IsClosed returns true if the queue is closed.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the items in the queue.
func (q *LockFreeMPSC[T]) Len() int {
	return int(q.length.Load())
}

func (q *LockFreeMPSC[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
