package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	// promauto registers these at package init; just verify they exist.

	assert.NotNil(t, TasksSubmitted)
	assert.NotNil(t, TasksCompleted)
	assert.NotNil(t, TaskDuration)

	assert.NotNil(t, QueueDepth)
	assert.NotNil(t, DispatchAttempts)

	assert.NotNil(t, ActiveWorkers)
	assert.NotNil(t, WorkersReaped)
	assert.NotNil(t, WorkerBusyTime)

	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)

	assert.NotNil(t, RedisOperationDuration)
	assert.NotNil(t, RedisErrors)

	assert.NotNil(t, WebSocketConnections)
	assert.NotNil(t, WebSocketMessages)
}

func TestRecordTaskSubmission(t *testing.T) {
	TasksSubmitted.Add(0) // no-op, just exercise the metric

	RecordTaskSubmission()
	RecordTaskSubmission()
}

func TestRecordTaskCompletion(t *testing.T) {
	TasksCompleted.Reset()
	TaskDuration.Observe(0) // reset isn't available on plain histograms

	RecordTaskCompletion("completed", 1.5)
	RecordTaskCompletion("failed", 0.5)
}

func TestUpdateQueueDepth(t *testing.T) {
	UpdateQueueDepth(100)
	UpdateQueueDepth(0)
}

func TestRecordDispatchAttempt(t *testing.T) {
	DispatchAttempts.Reset()

	RecordDispatchAttempt("dispatched")
	RecordDispatchAttempt("no_task")
	RecordDispatchAttempt("no_worker")
	RecordDispatchAttempt("send_failed")
}

func TestSetActiveWorkers(t *testing.T) {
	SetActiveWorkers(5)
	SetActiveWorkers(0)
}

func TestRecordWorkerReaped(t *testing.T) {
	RecordWorkerReaped()
	RecordWorkerReaped()
}

func TestRecordWorkerBusyTime(t *testing.T) {
	WorkerBusyTime.Reset()

	RecordWorkerBusyTime("worker-1", 10.5)
	RecordWorkerBusyTime("worker-2", 5.0)
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestDuration.Reset()
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("GET", "/api/v1/tasks", "200", 0.05)
	RecordHTTPRequest("POST", "/api/v1/tasks", "201", 0.1)
	RecordHTTPRequest("GET", "/api/v1/tasks/123", "404", 0.01)
}

func TestRecordRedisOperation(t *testing.T) {
	RedisOperationDuration.Reset()

	RecordRedisOperation("PUBLISH", 0.001)
	RecordRedisOperation("SUBSCRIBE", 0.005)
}

func TestRecordRedisError(t *testing.T) {
	RedisErrors.Reset()

	RecordRedisError("PUBLISH")
}

func TestSetWebSocketConnections(t *testing.T) {
	SetWebSocketConnections(0)
	SetWebSocketConnections(10)
}

func TestRecordWebSocketMessage(t *testing.T) {
	WebSocketMessages.Reset()

	RecordWebSocketMessage("task.submitted")
	RecordWebSocketMessage("task.completed")
	RecordWebSocketMessage("worker.joined")
}
