package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Client is a hand-rolled SDK for the coordinator's REST surface: task
// submission and lookup, worker and queue introspection, plus an optional
// WebSocket feed of cluster activity.
type Client struct {
	baseURL string
	opts    *options
	ws      *WebSocketClient
}

// New creates a new Client pointed at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{baseURL: baseURL, opts: o}, nil
}

// Task mirrors the dispatcher's wire representation of a submitted task.
type Task struct {
	ID        string            `json:"id"`
	Command   string            `json:"command"`
	Timeout   uint64            `json:"timeout,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	CreatedAt int64             `json:"created_at,omitempty"`
}

// TaskStatus mirrors the dispatcher's task status response.
type TaskStatus struct {
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

// Worker mirrors the dispatcher's worker registry entry.
type Worker struct {
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

// apiError is returned by the server on non-2xx responses.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SubmitTask creates a new task with the given shell command.
func (c *Client) SubmitTask(ctx context.Context, command string, timeoutSeconds uint64, env map[string]string) (*Task, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"command":         command,
		"timeout_seconds": timeoutSeconds,
		"env":             env,
	})

	var t Task
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", bytes.NewReader(body), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask retrieves the current status of a task by ID.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	var s TaskStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+taskID, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CancelTask requests best-effort cancellation of a task.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+taskID, nil, nil)
}

// QueueDepth returns the number of tasks currently waiting for a worker.
func (c *Client) QueueDepth(ctx context.Context) (int, error) {
	var resp struct {
		QueueDepth int `json:"queue_depth"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks", nil, &resp); err != nil {
		return 0, err
	}
	return resp.QueueDepth, nil
}

// ListWorkers returns all workers currently registered with the dispatcher.
func (c *Client) ListWorkers(ctx context.Context) ([]Worker, error) {
	var resp struct {
		Workers []Worker `json:"workers"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/workers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Workers, nil
}

// Health checks the health of the dispatcher process.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/admin/health", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ConnectWebSocket establishes a WebSocket connection for real-time events.
func (c *Client) ConnectWebSocket(ctx context.Context) error {
	if c.ws != nil && c.ws.IsConnected() {
		return nil
	}
	c.ws = newWebSocketClient(c.baseURL, c.opts.apiKey)
	return c.ws.Connect(ctx)
}

// Events returns a channel that receives WebSocket events. ConnectWebSocket
// must be called first.
func (c *Client) Events() <-chan *Event {
	if c.ws == nil {
		ch := make(chan *Event)
		close(ch)
		return ch
	}
	return c.ws.Events()
}

// CloseWebSocket closes the WebSocket connection, if any.
func (c *Client) CloseWebSocket() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Reader, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		reqBody = body
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.opts.applyHeaders()(ctx, req); err != nil {
		return err
	}

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	var apiErr apiError
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Message != "" {
		return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
	}
	return fmt.Errorf("unexpected status: %d", resp.StatusCode)
}
