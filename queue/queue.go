// Package queue provides an unbounded FIFO with an atomic multi-item pop,
// used to hand accepted sessions from the acceptor to the matchmaker.
package queue

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO. Any number of goroutines may Push; PopN is
// meant for a single consumer but is safe under several.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{})}
}

// Push appends item and wakes any waiting consumer.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
}

// PopN blocks until at least n items are queued, then removes and returns
// the first n in arrival order. Nothing is removed if ctx ends first.
func (q *Queue[T]) PopN(ctx context.Context, n int) ([]T, error) {
	if n < 1 {
		n = 1
	}

	for {
		q.mu.Lock()
		if len(q.items) >= n {
			out := make([]T, n)
			copy(out, q.items)
			clear(q.items[:n])
			q.items = q.items[n:]
			q.mu.Unlock()
			return out, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns everything queued.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	return out
}
