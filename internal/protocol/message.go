// Package protocol defines the wire types exchanged between the dispatcher
// and workers: tasks, results, worker identity, and the tagged message
// envelope that carries them over a framed connection.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a TaskResult.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Task is a unit of work routed from the dispatcher to a worker.
type Task struct {
	ID        string            `json:"id"`
	Command   string            `json:"command"`
	Inputs    []string          `json:"inputs,omitempty"`
	Outputs   []string          `json:"outputs,omitempty"`
	Timeout   uint64            `json:"timeout"` // seconds
	Env       map[string]string `json:"env,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

// NewTask builds a Task with a fresh id and the default ten minute timeout.
func NewTask(command string) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Command:   command,
		Timeout:   600,
		Env:       make(map[string]string),
		CreatedAt: time.Now().Unix(),
	}
}

// TaskResult is what a worker reports back once a task finishes, fails, is
// cancelled, or times out.
type TaskResult struct {
	TaskID      string `json:"task_id"`
	WorkerID    string `json:"worker_id"`
	Status      Status `json:"status"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	ExitCode    *int32 `json:"exit_code,omitempty"`
	DurationMs  uint64 `json:"duration_ms"`
	CompletedAt int64  `json:"completed_at"`
}

// WorkerInfo describes a worker's identity and capacity as known to the
// dispatcher's registry.
type WorkerInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	Port          uint16 `json:"port"`
	MaxJobs       int    `json:"max_jobs"`
	CurrentJobs   int    `json:"current_jobs"`
	AllowShell    bool   `json:"allow_shell"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	Platform      string `json:"platform"`
}

// NewWorkerInfo builds a WorkerInfo with a freshly generated id. Two
// announcements from the same physical worker produce two distinct ids and
// therefore two distinct registry entries — this mirrors the upstream
// dispatcher's behavior rather than de-duplicating by address.
func NewWorkerInfo(name, address string, port uint16, maxJobs int, allowShell bool, platform string) *WorkerInfo {
	return &WorkerInfo{
		ID:            uuid.New().String(),
		Name:          name,
		Address:       address,
		Port:          port,
		MaxJobs:       maxJobs,
		CurrentJobs:   0,
		AllowShell:    allowShell,
		LastHeartbeat: time.Now().Unix(),
		Platform:      platform,
	}
}

// IsIdle reports whether the worker has spare capacity.
func (w *WorkerInfo) IsIdle() bool {
	return w.CurrentJobs < w.MaxJobs
}

// Kind tags which variant a Message envelope carries.
type Kind int

const (
	KindWorkerAnnounce Kind = iota
	KindAssignTask
	KindTaskProgress
	KindTaskCompleted
	KindHeartbeat
	KindCancelTask
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindWorkerAnnounce:
		return "worker_announce"
	case KindAssignTask:
		return "assign_task"
	case KindTaskProgress:
		return "task_progress"
	case KindTaskCompleted:
		return "task_completed"
	case KindHeartbeat:
		return "heartbeat"
	case KindCancelTask:
		return "cancel_task"
	case KindAck:
		return "ack"
	default:
		return "unknown"
	}
}

// TaskProgress is an informational, state-less progress ping from worker to
// dispatcher; the dispatcher never retains it past re-publishing it as an
// observer event.
type TaskProgress struct {
	TaskID   string  `json:"task_id"`
	Progress float32 `json:"progress"`
}

// HeartbeatPayload carries the liveness signal from worker to dispatcher.
type HeartbeatPayload struct {
	WorkerID  string `json:"worker_id"`
	Timestamp int64  `json:"timestamp"`
}

// CancelTaskPayload names the task whose current-task slot a worker should
// clear. The worker neither stops the command nor withholds its result.
type CancelTaskPayload struct {
	TaskID string `json:"task_id"`
}

// AckPayload acknowledges receipt of a message by id. Neither side requires
// an Ack today; the variant exists on the wire for forward compatibility.
type AckPayload struct {
	MessageID string `json:"message_id"`
}

// Message is the tagged union that crosses the wire. Exactly one payload
// field is populated, selected by Kind. Using an explicit struct instead of
// an interface keeps gob encoding straightforward: gob cannot marshal an
// interface value without a concrete type registered on both ends.
type Message struct {
	Kind Kind

	WorkerAnnounce *WorkerInfo
	AssignTask     *Task
	TaskProgress   *TaskProgress
	TaskCompleted  *TaskResult
	Heartbeat      *HeartbeatPayload
	CancelTask     *CancelTaskPayload
	Ack            *AckPayload
}

func NewWorkerAnnounce(info *WorkerInfo) Message {
	return Message{Kind: KindWorkerAnnounce, WorkerAnnounce: info}
}

func NewAssignTask(t *Task) Message {
	return Message{Kind: KindAssignTask, AssignTask: t}
}

func NewTaskProgress(taskID string, progress float32) Message {
	return Message{Kind: KindTaskProgress, TaskProgress: &TaskProgress{TaskID: taskID, Progress: progress}}
}

func NewTaskCompleted(result *TaskResult) Message {
	return Message{Kind: KindTaskCompleted, TaskCompleted: result}
}

func NewHeartbeat(workerID string, timestamp int64) Message {
	return Message{Kind: KindHeartbeat, Heartbeat: &HeartbeatPayload{WorkerID: workerID, Timestamp: timestamp}}
}

func NewCancelTask(taskID string) Message {
	return Message{Kind: KindCancelTask, CancelTask: &CancelTaskPayload{TaskID: taskID}}
}

func NewAck(messageID string) Message {
	return Message{Kind: KindAck, Ack: &AckPayload{MessageID: messageID}}
}
