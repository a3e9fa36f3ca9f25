// Package squeue contains the unbounded FIFO queue
// that carries decoded messages from the transport's receive loop
// to the application.
//
// The producer never blocks and the consumer never blocks:
// the consumer polls with [Queue.TryPop] on its own schedule,
// optionally waking on [Queue.Ready].
package squeue

import "sync"

// Queue is an unbounded multi-producer, single-consumer FIFO queue.
// The zero value is not usable; use [New].
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int

	ready chan struct{}
}

// New returns an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends v to the back of q.
// Push never blocks and never drops v.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the front of q.
// If q is empty, TryPop returns the zero value and false.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	if q.head == len(q.items) {
		// Drained: reuse the backing array from the start.
		q.items = q.items[:0]
		q.head = 0
	}
	return v, true
}

// Len returns the number of items currently in q.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Clear discards every item in q and returns how many were discarded.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items) - q.head
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	return n
}

// Ready returns a channel that receives a value
// after one or more Push calls since it was last drained.
// A receive from Ready does not guarantee the queue is non-empty,
// because another TryPop or Clear may have raced it.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}
