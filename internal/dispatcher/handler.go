package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
	"github.com/taskmesh/coordinator/internal/protocol"
)

// HandleMessage implements transport.Handler for the dispatcher side of the
// protocol. It is the single dispatch point for everything a worker sends.
func (d *Dispatcher) HandleMessage(ctx context.Context, m protocol.Message) error {
	switch m.Kind {
	case protocol.KindWorkerAnnounce:
		return d.handleAnnounce(m.WorkerAnnounce)
	case protocol.KindTaskCompleted:
		return d.handleCompleted(m.TaskCompleted)
	case protocol.KindTaskProgress:
		return d.handleProgress(m.TaskProgress)
	case protocol.KindHeartbeat:
		return d.handleHeartbeat(m.Heartbeat)
	case protocol.KindAssignTask, protocol.KindCancelTask, protocol.KindAck:
		return fmt.Errorf("dispatcher: unexpected message kind %s on dispatcher side", m.Kind)
	default:
		return fmt.Errorf("dispatcher: unknown message kind %d", m.Kind)
	}
}

func (d *Dispatcher) handleAnnounce(info *protocol.WorkerInfo) error {
	d.registry.Register(info)
	metrics.SetActiveWorkers(float64(d.registry.Len()))
	logger.WithComponent("dispatcher").Info().
		Str("worker_id", info.ID).
		Str("name", info.Name).
		Str("address", fmt.Sprintf("%s:%d", info.Address, info.Port)).
		Msg("worker announced")
	d.publish("worker.joined", map[string]any{"worker_id": info.ID, "name": info.Name})
	return nil
}

func (d *Dispatcher) handleCompleted(result *protocol.TaskResult) error {
	d.results.Store(result)
	d.registry.DecrementJobs(result.WorkerID)
	d.clearAssignment(result.TaskID)
	if d.history != nil {
		d.history.RecordResult(result)
	}
	metrics.RecordTaskCompletion(result.Status.String(), float64(result.DurationMs)/1000.0)
	metrics.RecordWorkerBusyTime(result.WorkerID, float64(result.DurationMs)/1000.0)

	eventType := "task.completed"
	switch result.Status {
	case protocol.StatusFailed:
		eventType = "task.failed"
	case protocol.StatusTimedOut:
		eventType = "task.timed_out"
	case protocol.StatusCancelled:
		eventType = "task.cancelled"
	}
	d.publish(eventType, map[string]any{
		"task_id":   result.TaskID,
		"worker_id": result.WorkerID,
		"status":    result.Status.String(),
	})
	return nil
}

func (d *Dispatcher) handleProgress(p *protocol.TaskProgress) error {
	d.publish("task.progress", map[string]any{"task_id": p.TaskID, "progress": p.Progress})
	return nil
}

func (d *Dispatcher) handleHeartbeat(hb *protocol.HeartbeatPayload) error {
	d.registry.Touch(hb.WorkerID, time.Now())
	return nil
}
