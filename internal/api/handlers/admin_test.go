package handlers

import (
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
)

func newTestAdminHandler() *AdminHandler {
	d := dispatcher.New(dispatcher.Config{
		SchedulerTick:    500 * time.Millisecond,
		ReaperTick:       10 * time.Second,
		WorkerStaleAfter: 30 * time.Second,
	}, nil, nil)
	return NewAdminHandler(d, nil)
}

func TestAdminHandler_respondJSON(t *testing.T) {
	h := newTestAdminHandler()

	w := httptest.NewRecorder()
	data := map[string]string{"status": "ok"}

	h.respondJSON(w, http.StatusOK, data)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response["status"])
}

func TestAdminHandler_respondError(t *testing.T) {
	h := newTestAdminHandler()

	w := httptest.NewRecorder()
	h.respondError(w, http.StatusNotFound, "worker not found")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "Not Found", response["error"])
	assert.Equal(t, "worker not found", response["message"])
}

func TestAdminHandler_GetWorker_MissingID(t *testing.T) {
	h := newTestAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/workers/", nil)
	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("workerID", "")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.GetWorker(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "worker ID is required", response["message"])
}

func TestAdminHandler_GetWorker_NotFound(t *testing.T) {
	h := newTestAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/workers/ghost", nil)
	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("workerID", "ghost")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.GetWorker(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_ListWorkers_Empty(t *testing.T) {
	h := newTestAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/workers", nil)
	w := httptest.NewRecorder()

	h.ListWorkers(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, float64(0), response["count"])
}

func TestAdminHandler_GetQueue(t *testing.T) {
	h := newTestAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/queue", nil)
	w := httptest.NewRecorder()

	h.GetQueue(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, float64(0), response["depth"])
}

func TestAdminHandler_HealthCheck(t *testing.T) {
	h := newTestAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	w := httptest.NewRecorder()

	h.HealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "healthy", response["status"])
}
