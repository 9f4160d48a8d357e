// Package queue provides a bounded FIFO queue with non-blocking insertion.
package queue

// Queue is a bounded FIFO queue. Pushing into a full queue fails rather
// than blocking, leaving the drop-versus-block policy to the caller.
type Queue[T any] struct {
	ch chan T
}

// NewQueue creates a new queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPush attempts to append a value to the queue. It returns false if the
// queue is at capacity.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// C returns the channel from which queued values are consumed.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Len returns the number of values currently queued.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the capacity of the queue.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}
