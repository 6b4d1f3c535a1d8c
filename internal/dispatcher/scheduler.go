package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
	"github.com/taskmesh/coordinator/internal/protocol"
	"github.com/taskmesh/coordinator/internal/transport"
)

// runScheduler ticks on a fixed period, attempting at most one dispatch per
// tick: pop a task, find an idle worker, optimistically bump its job count,
// and push the assignment. A send failure rolls the increment back and
// re-enqueues the task at the tail rather than the head, so a single
// unreachable worker can't starve the rest of the queue behind it.
func (d *Dispatcher) runScheduler(ctx context.Context) {
	log := logger.WithComponent("scheduler")
	ticker := time.NewTicker(d.cfg.SchedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx, log)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context, log zerolog.Logger) {
	metrics.UpdateQueueDepth(float64(d.queue.Len()))
	metrics.SetActiveWorkers(float64(d.registry.Len()))

	t, ok := d.queue.Dequeue()
	if !ok {
		metrics.RecordDispatchAttempt("no_task")
		return
	}

	w, ok := d.registry.GetIdle()
	if !ok {
		d.queue.Enqueue(t)
		metrics.RecordDispatchAttempt("no_worker")
		return
	}

	if !d.registry.IncrementJobs(w.ID) {
		// Worker vanished between selection and increment (e.g. reaped).
		d.queue.Enqueue(t)
		metrics.RecordDispatchAttempt("no_worker")
		return
	}

	addr := addrOf(w)
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := transport.Send(sendCtx, addr, protocol.NewAssignTask(t))
	cancel()

	if err != nil {
		log.Warn().Err(err).Str("worker_id", w.ID).Str("task_id", t.ID).Msg("dispatch failed, re-enqueueing")
		d.registry.DecrementJobs(w.ID)
		d.queue.Enqueue(t)
		metrics.RecordDispatchAttempt("send_failed")
		return
	}

	d.setAssignment(t.ID, w.ID)
	log.Info().Str("worker_id", w.ID).Str("task_id", t.ID).Msg("task dispatched")
	metrics.RecordDispatchAttempt("dispatched")
	d.publish("task.started", map[string]any{"task_id": t.ID, "worker_id": w.ID})
}
