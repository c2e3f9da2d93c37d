// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jsj9346/makenaide-sub006/internal/log"
)

// Damped wraps a Notifier and rate limits low-severity notifications per
// subject, so a trigger firing every few minutes against an already running
// instance does not page anyone. High severity always passes through.
type Damped struct {
	inner  Notifier
	limit  rate.Limit
	burst  int
	logger zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDamped allows one low-severity notification per subject per interval
// given by limit (e.g. rate.Every(10*time.Minute)).
func NewDamped(inner Notifier, limit rate.Limit, burst int) *Damped {
	if burst < 1 {
		burst = 1
	}
	return &Damped{
		inner:    inner,
		limit:    limit,
		burst:    burst,
		logger:   log.WithComponent("notify"),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (d *Damped) Publish(ctx context.Context, n Notification) error {
	if n.Severity != SeverityHigh && !d.allow(n.Subject) {
		d.logger.Debug().
			Str("subject", n.Subject).
			Msg("notification suppressed by rate limit")
		return nil
	}
	return d.inner.Publish(ctx, n)
}

func (d *Damped) allow(key string) bool {
	d.mu.Lock()
	lim, ok := d.limiters[key]
	if !ok {
		lim = rate.NewLimiter(d.limit, d.burst)
		d.limiters[key] = lim
	}
	d.mu.Unlock()
	return lim.Allow()
}

var _ Notifier = (*Damped)(nil)
