// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/queue"
)

// Sweeper periodically returns expired claims (crashed or hung workers) to
// the pending queue. Exactly one sweeper per queue is enough; running more is
// harmless because requeueing is receipt-based.
type Sweeper struct {
	queue    queue.Queue
	interval time.Duration
	batch    int
	logger   zerolog.Logger
}

func NewSweeper(q queue.Queue, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{queue: q, interval: interval, batch: batch, logger: log.WithComponent("sweeper")}
}

// Run blocks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.queue.RequeueExpired(ctx, time.Now().UTC(), s.batch)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error().Err(err).Msg("sweep failed")
				continue
			}
			if n > 0 {
				s.logger.Warn().Int("requeued", n).Msg("expired claims swept back to pending")
			}
		}
	}
}
