//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/coordinator/internal/api"
	"github.com/taskmesh/coordinator/internal/api/handlers"
	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/dispatcher"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/worker"
)

func init() {
	logger.Init("error", false)
}

// setupTestCluster starts a real in-process dispatcher (TCP + HTTP, no
// history or event bus) and a real worker runner connected to it, so these
// tests exercise the full submit -> schedule -> execute -> report path
// rather than mocking any stage of it.
func setupTestCluster(t *testing.T) (*api.Server, func()) {
	t.Helper()

	tcpLn := freeAddr(t)
	d := dispatcher.New(dispatcher.Config{
		SchedulerTick:    50 * time.Millisecond,
		ReaperTick:       5 * time.Second,
		WorkerStaleAfter: 30 * time.Second,
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		_ = d.Run(ctx, tcpLn)
	}()
	waitForDial(t, tcpLn)

	w, err := worker.NewRunner(worker.Config{
		Name:              "it-worker",
		DispatcherAddr:    tcpLn,
		BindHost:          "127.0.0.1",
		BasePort:          0,
		PortScanRange:     1,
		MaxJobs:           1,
		AllowShell:        true,
		HeartbeatInterval: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	go func() {
		_ = w.Run(ctx)
	}()

	cfg := &config.Config{
		Metrics: config.MetricsConfig{Enabled: false},
	}
	server := api.NewServer(cfg, d, nil, nil)

	cleanup := func() {
		cancel()
		w.Stop()
	}

	return server, cleanup
}

func TestTaskLifecycle_CreateAndGet(t *testing.T) {
	server, cleanup := setupTestCluster(t)
	defer cleanup()

	createReq := handlers.CreateTaskRequest{Command: "echo hello"}
	body, _ := json.Marshal(createReq)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	taskID, _ := created["id"].(string)
	require.NotEmpty(t, taskID)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+taskID, nil)
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			return false
		}
		var status handlers.TaskStatusResponse
		_ = json.Unmarshal(w.Body.Bytes(), &status)
		return status.Status == "completed"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestTaskLifecycle_GetNotFound(t *testing.T) {
	server, cleanup := setupTestCluster(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/nonexistent-id", nil)
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskLifecycle_Cancel_NotAssigned(t *testing.T) {
	server, cleanup := setupTestCluster(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/nonexistent-id", nil)
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminEndpoints_Health(t *testing.T) {
	server, cleanup := setupTestCluster(t)
	defer cleanup()

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		var resp map[string]interface{}
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		count, _ := resp["workers"].(float64)
		return w.Code == http.StatusOK && count == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestAdminEndpoints_ListWorkers(t *testing.T) {
	server, cleanup := setupTestCluster(t)
	defer cleanup()

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/admin/workers", nil)
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		var resp map[string]interface{}
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		count, _ := resp["count"].(float64)
		return w.Code == http.StatusOK && count == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestAdminEndpoints_GetQueue(t *testing.T) {
	server, cleanup := setupTestCluster(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/admin/queue", nil)
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Contains(t, resp, "depth")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func waitForDial(t *testing.T, addr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)
}
