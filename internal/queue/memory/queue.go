// Package memory provides the bounded in-process queue feeding enrichment workers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/appcatalog/internal/catalog"
)

// Queue is a bounded in-memory queue with context-aware operations.
// The producer owns Close and must not Enqueue after calling it.
type Queue struct {
	ch      chan catalog.Task
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan catalog.Task, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task catalog.Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation. Once the queue
// is closed and drained it returns catalog.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (catalog.Task, error) {
	select {
	case <-ctx.Done():
		return catalog.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return catalog.Task{}, catalog.ErrQueueClosed
		}
		return task, nil
	}
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel. Buffered tasks remain available to Dequeue.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
