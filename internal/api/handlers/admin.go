package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskmesh/coordinator/internal/dispatcher"
	"github.com/taskmesh/coordinator/internal/history"
	"github.com/taskmesh/coordinator/internal/logger"
)

// AdminHandler handles admin API requests
type AdminHandler struct {
	dispatcher *dispatcher.Dispatcher
	history    *history.Store
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(d *dispatcher.Dispatcher, h *history.Store) *AdminHandler {
	return &AdminHandler{dispatcher: d, history: h}
}

// ListWorkers handles GET /admin/workers
func (h *AdminHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers := h.dispatcher.Workers()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workers": workers,
		"count":   len(workers),
	})
}

// GetWorker handles GET /admin/workers/{workerID}
func (h *AdminHandler) GetWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		h.respondError(w, http.StatusBadRequest, "worker ID is required")
		return
	}

	for _, wk := range h.dispatcher.Workers() {
		if wk.ID == workerID {
			h.respondJSON(w, http.StatusOK, wk)
			return
		}
	}

	h.respondError(w, http.StatusNotFound, "worker not found")
}

// GetQueue handles GET /admin/queue
func (h *AdminHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"depth": h.dispatcher.QueueDepth(),
	})
}

// HealthCheck handles GET /admin/health
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":      "healthy",
		"workers":     len(h.dispatcher.Workers()),
		"queue_depth": h.dispatcher.QueueDepth(),
	}

	if h.history != nil {
		if err := h.history.Ping(); err != nil {
			status["status"] = "degraded"
			status["history"] = "disconnected"
			h.respondJSON(w, http.StatusOK, status)
			return
		}
		status["history"] = "connected"
	}

	h.respondJSON(w, http.StatusOK, status)
}

func (h *AdminHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *AdminHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}
