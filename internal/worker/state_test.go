package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmesh/coordinator/internal/protocol"
)

func TestState_AssignAndComplete(t *testing.T) {
	s := NewState()
	assert.Equal(t, PhaseIdle, s.CurrentPhase())

	task := protocol.NewTask("echo hi")
	s.Assign(task)
	assert.Equal(t, PhaseRunning, s.CurrentPhase())

	current, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, task.ID, current.ID)

	result := &protocol.TaskResult{TaskID: task.ID, Status: protocol.StatusCompleted}
	s.Complete(result)

	assert.Equal(t, PhaseIdle, s.CurrentPhase())
	_, ok = s.Current()
	assert.False(t, ok)
	assert.Equal(t, 1, s.CompletedCount())
}

func TestState_CancelMatchingTask(t *testing.T) {
	s := NewState()
	task := protocol.NewTask("sleep 10")
	s.Assign(task)

	ok := s.Cancel(task.ID)
	assert.True(t, ok)
	assert.Equal(t, PhaseIdle, s.CurrentPhase())
}

func TestState_CancelNonMatchingTaskIsNoop(t *testing.T) {
	s := NewState()
	task := protocol.NewTask("sleep 10")
	s.Assign(task)

	ok := s.Cancel("some-other-task-id")
	assert.False(t, ok)
	assert.Equal(t, PhaseRunning, s.CurrentPhase())
}

func TestState_CancelWithNoCurrentTask(t *testing.T) {
	s := NewState()
	ok := s.Cancel("anything")
	assert.False(t, ok)
}
