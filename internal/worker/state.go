package worker

import (
	"sync"

	"github.com/taskmesh/coordinator/internal/protocol"
)

// Phase is the worker's own local state, independent of whatever the
// dispatcher's registry believes about it.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
)

func (p Phase) String() string {
	if p == PhaseRunning {
		return "running"
	}
	return "idle"
}

// State holds the worker's single current-task slot and an unbounded list
// of completed results. The slot tracks only the most recently assigned
// task: the dispatcher may assign further tasks (up to the worker's
// MaxJobs) while one is running, and each Assign overwrites the slot —
// this mirrors the source's lack of local enforcement.
type State struct {
	mu        sync.Mutex
	phase     Phase
	current   *protocol.Task
	completed []*protocol.TaskResult
}

func NewState() *State {
	return &State{phase: PhaseIdle}
}

// Assign transitions Idle -> Running, storing the task in the current slot.
func (s *State) Assign(t *protocol.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseRunning
	s.current = t
}

// Complete clears the current slot and records the result, transitioning
// Running -> Idle. Safe to call even if nothing was assigned.
func (s *State) Complete(result *protocol.TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseIdle
	s.current = nil
	s.completed = append(s.completed, result)
}

// Cancel clears the current slot if it matches taskID, without affecting
// any process the executor may still have running for it — cancellation is
// advisory at this layer, matching the upstream worker's behavior.
func (s *State) Cancel(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ID != taskID {
		return false
	}
	s.phase = PhaseIdle
	s.current = nil
	return true
}

// Current returns the task currently assigned, if any.
func (s *State) Current() (*protocol.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	cp := *s.current
	return &cp, true
}

// CurrentPhase returns the worker's current phase.
func (s *State) CurrentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CompletedCount returns how many results this worker has recorded locally.
func (s *State) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}
