package dispatcher

import (
	"sync"

	"github.com/taskmesh/coordinator/internal/protocol"
)

// ResultStore holds the most recent result for each task id the dispatcher
// has seen a TaskCompleted message for. A second completion for the same
// task id overwrites the first.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*protocol.TaskResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*protocol.TaskResult)}
}

func (s *ResultStore) Store(r *protocol.TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.TaskID] = r
}

func (s *ResultStore) Get(taskID string) (*protocol.TaskResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[taskID]
	return r, ok
}

func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
