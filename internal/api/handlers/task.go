package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskmesh/coordinator/internal/dispatcher"
	"github.com/taskmesh/coordinator/internal/history"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/protocol"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	dispatcher *dispatcher.Dispatcher
	history    *history.Store
}

// NewTaskHandler creates a new task handler. history may be nil, in which
// case Get falls back to the in-memory result store only.
func NewTaskHandler(d *dispatcher.Dispatcher, h *history.Store) *TaskHandler {
	return &TaskHandler{dispatcher: d, history: h}
}

// CreateTaskRequest is the body accepted by POST /api/v1/tasks
type CreateTaskRequest struct {
	Command string            `json:"command"`
	Timeout uint64            `json:"timeout_seconds,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Create handles POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Command == "" {
		h.respondError(w, http.StatusBadRequest, "command is required")
		return
	}

	t := protocol.NewTask(req.Command)
	if req.Timeout > 0 {
		t.Timeout = req.Timeout
	}
	if req.Env != nil {
		t.Env = req.Env
	}

	h.dispatcher.Submit(t)

	logger.Info().Str("task_id", t.ID).Str("command", t.Command).Msg("task submitted")
	h.respondJSON(w, http.StatusCreated, t)
}

// TaskStatusResponse merges the in-flight result (if any) with durable
// history so a client can ask about a task at any point in its lifecycle.
type TaskStatusResponse struct {
	TaskID      string `json:"task_id"`
	Status      string `json:"status"`
	WorkerID    string `json:"worker_id,omitempty"`
	Stdout      string `json:"stdout,omitempty"`
	Stderr      string `json:"stderr,omitempty"`
	ExitCode    *int32 `json:"exit_code,omitempty"`
	DurationMs  uint64 `json:"duration_ms,omitempty"`
	SubmittedAt int64  `json:"submitted_at,omitempty"`
	CompletedAt int64  `json:"completed_at,omitempty"`
}

// Get handles GET /api/v1/tasks/{taskID}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		h.respondError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	if result, ok := h.dispatcher.Result(taskID); ok {
		h.respondJSON(w, http.StatusOK, TaskStatusResponse{
			TaskID:      result.TaskID,
			Status:      result.Status.String(),
			WorkerID:    result.WorkerID,
			Stdout:      result.Stdout,
			Stderr:      result.Stderr,
			ExitCode:    result.ExitCode,
			DurationMs:  result.DurationMs,
			CompletedAt: result.CompletedAt,
		})
		return
	}

	if h.history != nil {
		if rec, err := h.history.GetTask(taskID); err == nil && rec != nil {
			h.respondJSON(w, http.StatusOK, TaskStatusResponse{
				TaskID:      rec.TaskID,
				Status:      rec.Status,
				WorkerID:    rec.WorkerID,
				Stdout:      rec.Stdout,
				Stderr:      rec.Stderr,
				ExitCode:    rec.ExitCode,
				DurationMs:  rec.DurationMs,
				SubmittedAt: rec.SubmittedAt,
				CompletedAt: rec.CompletedAt,
			})
			return
		}
	}

	h.respondError(w, http.StatusNotFound, "task not found")
}

// Cancel handles DELETE /api/v1/tasks/{taskID}. It is best-effort: the
// dispatcher forwards a CancelTask message to whichever worker is holding
// the task, but nothing confirms the worker actually stopped the command.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		h.respondError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	found, err := h.dispatcher.Cancel(r.Context(), taskID)
	if err != nil {
		logger.Error().Err(err).Str("task_id", taskID).Msg("failed to send cancellation")
		h.respondError(w, http.StatusBadGateway, "failed to reach worker")
		return
	}
	if !found {
		h.respondError(w, http.StatusNotFound, "task is not currently assigned to a worker")
		return
	}

	logger.Info().Str("task_id", taskID).Msg("cancellation requested")
	h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "cancellation requested",
		"task_id": taskID,
	})
}

// List handles GET /api/v1/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"queue_depth": h.dispatcher.QueueDepth(),
	}

	if h.history != nil {
		if recent, err := h.history.ListRecent(50); err == nil {
			response["recent"] = recent
		}
		if counts, err := h.history.CountByStatus(); err == nil {
			response["counts_by_status"] = counts
		}
	}

	h.respondJSON(w, http.StatusOK, response)
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
