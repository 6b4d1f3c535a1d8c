// Package dispatcher implements the coordinator side of the protocol: the
// task queue, worker registry, result store, scheduler tick, reaper tick,
// and the per-connection message handler that ties them together. It is the
// Go counterpart of the original coordinator's scheduler module, split
// across files the way this module's other components are.
package dispatcher

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/taskmesh/coordinator/internal/metrics"
	"github.com/taskmesh/coordinator/internal/protocol"
	"github.com/taskmesh/coordinator/internal/queue"
	"github.com/taskmesh/coordinator/internal/registry"
	"github.com/taskmesh/coordinator/internal/transport"
)

// HistorySink is the narrow write path into the out-of-core durable store.
// The dispatcher never reads back through this interface; only the HTTP
// query surface does, via the concrete store type.
type HistorySink interface {
	RecordSubmission(t *protocol.Task)
	RecordResult(r *protocol.TaskResult)
}

// EventSink is the narrow write path into the out-of-core event bus feeding
// the WebSocket dashboard. Like HistorySink, the dispatcher only ever
// publishes through it.
type EventSink interface {
	Publish(ctx context.Context, eventType string, data map[string]any)
}

// Config configures scheduler and reaper timing.
type Config struct {
	SchedulerTick    time.Duration
	ReaperTick       time.Duration
	WorkerStaleAfter time.Duration
}

// Dispatcher owns the queue, registry, and result store for one coordinator
// process. It is safe for concurrent use; its own fields besides the
// sub-structures are only ever set at construction.
type Dispatcher struct {
	cfg      Config
	queue    *queue.Queue
	registry *registry.Registry
	results  *ResultStore
	history  HistorySink
	events   EventSink

	assignMu    sync.RWMutex
	assignments map[string]string // task id -> worker id, while running

	wg sync.WaitGroup
}

// New builds a Dispatcher. history and events may be nil, in which case
// submissions and completions simply aren't mirrored anywhere outside the
// in-memory core — useful for tests that only care about scheduling.
func New(cfg Config, history HistorySink, events EventSink) *Dispatcher {
	return &Dispatcher{
		cfg:         cfg,
		queue:       queue.New(),
		registry:    registry.New(),
		results:     NewResultStore(),
		history:     history,
		events:      events,
		assignments: make(map[string]string),
	}
}

// Submit enqueues a task for dispatch and mirrors it into the history
// store. The HTTP API is its only caller; the TCP protocol has no
// submission message.
func (d *Dispatcher) Submit(t *protocol.Task) {
	d.queue.Enqueue(t)
	if d.history != nil {
		d.history.RecordSubmission(t)
	}
	metrics.RecordTaskSubmission()
	d.publish("task.submitted", map[string]any{"task_id": t.ID, "command": t.Command})
}

// Result returns a previously stored result, if any.
func (d *Dispatcher) Result(taskID string) (*protocol.TaskResult, bool) {
	return d.results.Get(taskID)
}

// Workers returns a snapshot of the registry.
func (d *Dispatcher) Workers() []*protocol.WorkerInfo {
	return d.registry.List()
}

// QueueDepth returns the number of pending tasks.
func (d *Dispatcher) QueueDepth() int {
	return d.queue.Len()
}

// Cancel sends a best-effort cancellation to whichever worker currently
// holds taskID. It reports whether an assignment was found at all; it
// cannot confirm the worker actually stopped the child process, since the
// worker side does not kill in-flight commands on cancel.
func (d *Dispatcher) Cancel(ctx context.Context, taskID string) (bool, error) {
	d.assignMu.RLock()
	workerID, ok := d.assignments[taskID]
	d.assignMu.RUnlock()
	if !ok {
		return false, nil
	}

	w, ok := d.registry.Get(workerID)
	if !ok {
		return false, nil
	}

	addr := addrOf(w)
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := transport.Send(sendCtx, addr, protocol.NewCancelTask(taskID)); err != nil {
		return true, err
	}
	return true, nil
}

func (d *Dispatcher) setAssignment(taskID, workerID string) {
	d.assignMu.Lock()
	d.assignments[taskID] = workerID
	d.assignMu.Unlock()
}

func (d *Dispatcher) clearAssignment(taskID string) {
	d.assignMu.Lock()
	delete(d.assignments, taskID)
	d.assignMu.Unlock()
}

func addrOf(w *protocol.WorkerInfo) string {
	return w.Address + ":" + strconv.Itoa(int(w.Port))
}

// Run starts the scheduler tick, reaper tick, and a TCP listener that
// drives inbound WorkerAnnounce/TaskCompleted/TaskProgress/Heartbeat
// messages. It blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, listenAddr string) error {
	ln, err := transport.Listen(listenAddr, "dispatcher")
	if err != nil {
		return err
	}

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.runScheduler(ctx)
	}()
	go func() {
		defer d.wg.Done()
		d.runReaper(ctx)
	}()

	err = ln.Serve(ctx, transport.HandlerFunc(d.HandleMessage))
	d.wg.Wait()
	return err
}

func (d *Dispatcher) publish(eventType string, data map[string]any) {
	if d.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.events.Publish(ctx, eventType, data)
}
