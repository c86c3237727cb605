package usb

import (
	"context"
	"time"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/ipc"
)

// Poller posts the mount-poll event on a fixed interval so the service
// loop re-checks media presence.
type Poller struct {
	queue    *ipc.Queue
	interval time.Duration
}

// NewPoller creates a poller. A non-positive interval disables it.
func NewPoller(queue *ipc.Queue, interval time.Duration) *Poller {
	return &Poller{queue: queue, interval: interval}
}

// Run posts events until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.Post(ipc.MountPoll); err != nil {
				// The loop is busy; the next tick retries.
				logger.Debug("Mount poll skipped", logger.Err(err))
			}
		}
	}
}
