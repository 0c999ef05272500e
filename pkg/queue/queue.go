// Package queue provides an unbounded thread-safe FIFO queue with a
// blocking receive, used as the sink for subprocess output readers.
package queue

import (
	"bufio"
	"io"
	"sync"
	"time"
)

// Queue is an unbounded FIFO queue safe for concurrent use.
// Put never blocks; Get blocks up to a timeout.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
	}
}

// Put appends an item to the queue and wakes one waiting Get.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Get removes and returns the oldest item. It blocks until an item is
// available or the timeout elapses; the second return value reports
// whether an item was received.
func (q *Queue[T]) Get(timeout time.Duration) (T, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-timer.C:
			var zero T
			return zero, false
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ReadLines scans r line by line, putting each line (without the trailing
// newline) onto q. It returns when the stream closes. Read errors end the
// reader the same way closure does; there is no sentinel value.
func ReadLines(r io.Reader, q *Queue[string]) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		q.Put(scanner.Text())
	}
}
