package gallery

import (
	"sync"
	"sync/atomic"
)

// PendingQueue holds fragments waiting for the rebuild worker.
//
// Both Enqueue and Dequeue work on the tail, so the most recently enqueued
// fragment is rendered next (LIFO). A single mutex guards the whole
// structure. Process keeps that mutex for the duration of its callback, which
// makes producers block on Enqueue while the document is being rewritten.
type PendingQueue struct {
	mu    sync.Mutex
	items []Fragment

	// depth mirrors len(items) so metrics scrapes do not wait on mu.
	depth atomic.Int64
	wake  chan struct{}
}

// NewPendingQueue returns an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{wake: make(chan struct{}, 1)}
}

// Enqueue pushes f onto the tail and wakes the consumer.
func (q *PendingQueue) Enqueue(f Fragment) {
	q.mu.Lock()
	q.items = append(q.items, f)
	q.depth.Store(int64(len(q.items)))
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue pops the tail. ok is false when the queue is empty.
func (q *PendingQueue) Dequeue() (f Fragment, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Process pops the tail and calls fn with it while still holding the queue
// lock. processed is false when the queue was empty, in which case fn is not
// called. The popped fragment is consumed whether or not fn succeeds.
func (q *PendingQueue) Process(fn func(Fragment) error) (processed bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, ok := q.popLocked()
	if !ok {
		return false, nil
	}
	return true, fn(f)
}

// Len returns the number of pending fragments without taking the lock.
func (q *PendingQueue) Len() int {
	return int(q.depth.Load())
}

// Wake returns a channel that receives after an Enqueue. Several enqueues may
// collapse into one receive, so the consumer must drain until empty.
func (q *PendingQueue) Wake() <-chan struct{} {
	return q.wake
}

// popLocked removes the tail. Caller must hold q.mu.
func (q *PendingQueue) popLocked() (Fragment, bool) {
	n := len(q.items)
	if n == 0 {
		return Fragment{}, false
	}
	f := q.items[n-1]
	q.items[n-1] = Fragment{}
	q.items = q.items[:n-1]
	q.depth.Store(int64(len(q.items)))
	return f, true
}
