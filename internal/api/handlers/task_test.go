package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/coordinator/internal/dispatcher"
	"github.com/taskmesh/coordinator/internal/logger"
)

func init() {
	logger.Init("error", false)
}

func newTestHandler() *TaskHandler {
	d := dispatcher.New(dispatcher.Config{
		SchedulerTick:    500 * time.Millisecond,
		ReaperTick:       10 * time.Second,
		WorkerStaleAfter: 30 * time.Second,
	}, nil, nil)
	return NewTaskHandler(d, nil)
}

func TestTaskHandler_respondJSON(t *testing.T) {
	h := newTestHandler()

	w := httptest.NewRecorder()
	data := map[string]string{"message": "hello"}

	h.respondJSON(w, http.StatusOK, data)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "hello", response["message"])
}

func TestTaskHandler_respondError(t *testing.T) {
	h := newTestHandler()

	w := httptest.NewRecorder()
	h.respondError(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "Bad Request", response.Error)
	assert.Equal(t, "invalid input", response.Message)
}

func TestTaskHandler_Create_InvalidJSON(t *testing.T) {
	h := newTestHandler()

	body := bytes.NewBufferString("invalid json")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "invalid request body", response.Message)
}

func TestTaskHandler_Create_MissingCommand(t *testing.T) {
	h := newTestHandler()

	reqBody := CreateTaskRequest{Command: ""}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "command is required", response.Message)
}

func TestTaskHandler_Create_Succeeds(t *testing.T) {
	h := newTestHandler()

	reqBody := CreateTaskRequest{Command: "echo hello", Timeout: 30}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, h.dispatcher.QueueDepth())
}

func TestTaskHandler_Get_MissingID(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/", nil)
	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("taskID", "")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.Get(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_Get_NotFound(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/ghost", nil)
	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("taskID", "ghost")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskHandler_Cancel_MissingID(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/", nil)
	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("taskID", "")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.Cancel(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_Cancel_NotAssigned(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/ghost", nil)
	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("taskID", "ghost")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.Cancel(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorResponse_Struct(t *testing.T) {
	resp := ErrorResponse{
		Error:   "Not Found",
		Message: "Task not found",
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded ErrorResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, resp.Error, decoded.Error)
	assert.Equal(t, resp.Message, decoded.Message)
}
