package worker

import (
	"context"
	"time"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/protocol"
	"github.com/taskmesh/coordinator/internal/transport"
)

// HeartbeatSender periodically sends a Heartbeat message to the dispatcher.
// The distilled source referenced heartbeats in its worker loop but never
// actually sent any, which would starve the dispatcher's reaper and evict
// every worker within one staleness window; this closes that gap rather
// than reproducing it, per the compatibility notes this module carries.
type HeartbeatSender struct {
	dispatcherAddr string
	workerID       string
	interval       time.Duration
}

func NewHeartbeatSender(dispatcherAddr, workerID string, interval time.Duration) *HeartbeatSender {
	return &HeartbeatSender{dispatcherAddr: dispatcherAddr, workerID: workerID, interval: interval}
}

// Run blocks, sending heartbeats on a fixed tick until ctx is cancelled.
func (h *HeartbeatSender) Run(ctx context.Context) {
	log := logger.WithWorker(h.workerID)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := protocol.NewHeartbeat(h.workerID, time.Now().Unix())
			sendCtx, cancel := context.WithTimeout(ctx, h.interval)
			err := transport.Send(sendCtx, h.dispatcherAddr, msg)
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("failed to send heartbeat")
			}
		}
	}
}
