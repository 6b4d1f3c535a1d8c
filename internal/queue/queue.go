// Package queue holds the dispatcher's pending task queue: a plain FIFO,
// in-memory, with no priority, no persistence, and no deduplication. This
// replaces the Redis Streams priority queue found elsewhere in this
// module's history; see the top-level design notes for why.
package queue

import (
	"sync"

	"github.com/taskmesh/coordinator/internal/protocol"
)

// Queue is a concurrency-safe FIFO of pending tasks.
type Queue struct {
	mu    sync.RWMutex
	tasks []*protocol.Task
}

func New() *Queue {
	return &Queue{}
}

// Enqueue appends a task to the tail.
func (q *Queue) Enqueue(t *protocol.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

// Dequeue removes and returns the head task, or reports empty.
func (q *Queue) Dequeue() (*protocol.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}
