package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/taskmesh/coordinator/internal/protocol"
)

func newTestDispatcher() *Dispatcher {
	return New(Config{
		SchedulerTick:    500 * time.Millisecond,
		ReaperTick:       10 * time.Second,
		WorkerStaleAfter: 30 * time.Second,
	}, nil, nil)
}

type recordingHistory struct {
	submitted []string
}

func (h *recordingHistory) RecordSubmission(t *protocol.Task) {
	h.submitted = append(h.submitted, t.ID)
}
func (h *recordingHistory) RecordResult(r *protocol.TaskResult) {}

func TestDispatcher_SubmitEnqueuesAndRecordsHistory(t *testing.T) {
	h := &recordingHistory{}
	d := New(Config{
		SchedulerTick:    500 * time.Millisecond,
		ReaperTick:       10 * time.Second,
		WorkerStaleAfter: 30 * time.Second,
	}, h, nil)
	task := protocol.NewTask("echo hi")
	d.Submit(task)

	assert.Equal(t, 1, d.QueueDepth())
	assert.Equal(t, []string{task.ID}, h.submitted)
}

func TestDispatcher_HandleAnnounceRegistersWorker(t *testing.T) {
	d := newTestDispatcher()
	info := protocol.NewWorkerInfo("w1", "127.0.0.1", 9000, 2, true, "linux")

	err := d.handleAnnounce(info)
	assert.NoError(t, err)

	workers := d.Workers()
	assert.Len(t, workers, 1)
	assert.Equal(t, info.ID, workers[0].ID)
}

func TestDispatcher_HandleCompletedDecrementsCapacityAndStoresResult(t *testing.T) {
	d := newTestDispatcher()
	info := protocol.NewWorkerInfo("w1", "127.0.0.1", 9000, 2, true, "linux")
	_ = d.handleAnnounce(info)
	d.registry.IncrementJobs(info.ID)

	result := &protocol.TaskResult{TaskID: "task-1", WorkerID: info.ID, Status: protocol.StatusCompleted}
	err := d.handleCompleted(result)
	assert.NoError(t, err)

	w, ok := d.registry.Get(info.ID)
	assert.True(t, ok)
	assert.Equal(t, 0, w.CurrentJobs)

	stored, ok := d.Result("task-1")
	assert.True(t, ok)
	assert.Equal(t, protocol.StatusCompleted, stored.Status)
}

func TestDispatcher_HandleHeartbeatTouchesKnownWorker(t *testing.T) {
	d := newTestDispatcher()
	info := protocol.NewWorkerInfo("w1", "127.0.0.1", 9000, 2, true, "linux")
	info.LastHeartbeat = 0
	_ = d.handleAnnounce(info)

	before := time.Now().Unix()
	err := d.handleHeartbeat(&protocol.HeartbeatPayload{WorkerID: info.ID, Timestamp: 12345})
	assert.NoError(t, err)

	w, ok := d.registry.Get(info.ID)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, w.LastHeartbeat, before)
	assert.NotEqual(t, int64(12345), w.LastHeartbeat)
}

func TestDispatcher_HandleHeartbeatIgnoresUnknownWorker(t *testing.T) {
	d := newTestDispatcher()
	err := d.handleHeartbeat(&protocol.HeartbeatPayload{WorkerID: "ghost", Timestamp: 1})
	assert.NoError(t, err)
	assert.Empty(t, d.Workers())
}

func TestDispatcher_TickReEnqueuesWhenNoIdleWorker(t *testing.T) {
	d := newTestDispatcher()
	task := protocol.NewTask("echo hi")
	d.Submit(task)

	// No workers registered at all: tick should pop and put it right back.
	d.tick(context.Background(), zerolog.Nop())

	assert.Equal(t, 1, d.QueueDepth())
}

func TestDispatcher_UnknownCompletionWorkerIsNoop(t *testing.T) {
	d := newTestDispatcher()
	result := &protocol.TaskResult{TaskID: "task-1", WorkerID: "ghost-worker", Status: protocol.StatusCompleted}
	err := d.handleCompleted(result)
	assert.NoError(t, err)
	_, ok := d.Result("task-1")
	assert.True(t, ok)
}
