package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task metrics
	TasksSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmesh_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_tasks_completed_total",
			Help: "Total number of tasks completed, by final status",
		},
		[]string{"status"},
	)

	TaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskmesh_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
	)

	// Queue and scheduler metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskmesh_queue_depth",
			Help: "Current number of tasks waiting for dispatch",
		},
	)

	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_dispatch_attempts_total",
			Help: "Total number of scheduler dispatch attempts, by outcome",
		},
		[]string{"outcome"}, // dispatched, no_task, no_worker, send_failed
	)

	// Worker metrics
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskmesh_active_workers",
			Help: "Current number of registered workers",
		},
	)

	WorkersReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmesh_workers_reaped_total",
			Help: "Total number of workers evicted for a stale heartbeat",
		},
	)

	WorkerBusyTime = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_worker_busy_seconds_total",
			Help: "Total time workers spent executing tasks",
		},
		[]string{"worker_id"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmesh_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Redis metrics (the event bus feeding the WebSocket dashboard)
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmesh_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"operation"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskmesh_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_websocket_messages_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)
)

// RecordTaskSubmission records a task submission
func RecordTaskSubmission() {
	TasksSubmitted.Inc()
}

// RecordTaskCompletion records a task completion
func RecordTaskCompletion(status string, duration float64) {
	TasksCompleted.WithLabelValues(status).Inc()
	TaskDuration.Observe(duration)
}

// UpdateQueueDepth updates the queue depth gauge
func UpdateQueueDepth(depth float64) {
	QueueDepth.Set(depth)
}

// RecordDispatchAttempt records a scheduler tick outcome
func RecordDispatchAttempt(outcome string) {
	DispatchAttempts.WithLabelValues(outcome).Inc()
}

// SetActiveWorkers sets the active workers gauge
func SetActiveWorkers(count float64) {
	ActiveWorkers.Set(count)
}

// RecordWorkerReaped increments the reaped-workers counter
func RecordWorkerReaped() {
	WorkersReaped.Inc()
}

// RecordWorkerBusyTime records time spent processing
func RecordWorkerBusyTime(workerID string, duration float64) {
	WorkerBusyTime.WithLabelValues(workerID).Add(duration)
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRedisError records a Redis error
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}

// SetWebSocketConnections sets the WebSocket connections gauge
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records a WebSocket message
func RecordWebSocketMessage(msgType string) {
	WebSocketMessages.WithLabelValues(msgType).Inc()
}
