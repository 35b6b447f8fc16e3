package ingestion

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO shared by two pipeline stages.
// Put blocks while the queue is full and Get blocks while it is empty.
// The producer calls Close once after its last Put; Get then drains the
// remaining values and reports ok=false.
type Queue[T any] struct {
	ch        chan T
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most capacity values.
// A capacity below 1 is raised to 1.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Put appends v, waiting for room. It returns ctx.Err() if ctx is done first.
// Put must not be called after Close.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get removes the oldest value, waiting until one is available.
// ok is false once the queue is closed and empty.
func (q *Queue[T]) Get(ctx context.Context) (v T, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return v, false, err
	}
	select {
	case v, ok = <-q.ch:
		return v, ok, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// Close marks the end of the stream. Calling it more than once is harmless.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.ch)
	})
}

// Len returns the number of values waiting in the queue.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}
