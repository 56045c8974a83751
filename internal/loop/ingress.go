package loop

import "sync"

// ingressQueue is a thread-safe FIFO of work destined for the loop
// goroutine.
//
// The queue is unbounded so that submitters never block on a slow frame.
// It uses a channel for signaling so Run can wait for work and frame ticks
// in the same select.
type ingressQueue struct {
	mu     sync.Mutex
	work   []func()
	closed bool
	signal chan struct{} // buffered, size 1
}

func newIngressQueue() *ingressQueue {
	return &ingressQueue{
		work:   make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds fn to the back of the queue.
// Returns false if the queue is closed.
func (q *ingressQueue) Enqueue(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.work = append(q.work, fn)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *ingressQueue) TryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.work) == 0 {
		return nil, false
	}
	fn := q.work[0]
	q.work[0] = nil // release the closure
	if len(q.work) == 1 {
		q.work = q.work[:0]
	} else {
		q.work = q.work[1:]
	}
	return fn, true
}

// Wait returns a channel that signals when work may be available.
func (q *ingressQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *ingressQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.work)
}

// Close rejects further work. Queued work can still be drained.
func (q *ingressQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
