package dispatcher

import (
	"context"
	"time"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
)

// runReaper ticks on a fixed period and evicts every worker whose heartbeat
// has gone stale. Tasks already dispatched to an evicted worker are not
// recovered; they are considered lost, matching the upstream coordinator's
// lack of a re-dispatch path for that case.
func (d *Dispatcher) runReaper(ctx context.Context) {
	log := logger.WithComponent("reaper")
	ticker := time.NewTicker(d.cfg.ReaperTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := d.registry.Reap(time.Now(), d.cfg.WorkerStaleAfter)
			for _, id := range evicted {
				log.Info().Str("worker_id", id).Msg("evicted stale worker")
				metrics.RecordWorkerReaped()
				d.publish("worker.left", map[string]any{"worker_id": id})
			}
		}
	}
}
