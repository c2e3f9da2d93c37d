// SPDX-License-Identifier: MIT

package phase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// Announcer is the producer side of the phase-chain protocol. Announce never
// blocks pipeline progress: publish errors are logged and counted, not
// propagated, because the protocol is fire-and-forget by contract.
type Announcer struct {
	bus     Bus
	timeout time.Duration
	logger  zerolog.Logger
	clock   func() time.Time
}

// NewAnnouncer wires an announcer to a bus. timeout caps how long a publish
// may block before the event is dropped.
func NewAnnouncer(bus Bus, timeout time.Duration) *Announcer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Announcer{
		bus:     bus,
		timeout: timeout,
		logger:  log.WithComponent("phase"),
		clock:   time.Now,
	}
}

// Announce publishes a phase lifecycle event.
func (a *Announcer) Announce(ctx context.Context, phase int, status model.PhaseStatus, data map[string]string) {
	a.publish(ctx, model.DetailPhaseCompleted, model.PhaseEvent{
		Phase:     phase,
		Status:    status,
		Timestamp: a.clock().UTC(),
		Data:      data,
	})
}

// AnnounceSignal publishes a domain trading signal on the second logical
// channel.
func (a *Announcer) AnnounceSignal(ctx context.Context, phase int, data map[string]string) {
	a.publish(ctx, model.DetailTradingSignal, model.PhaseEvent{
		Phase:     phase,
		Status:    model.PhaseSuccess,
		Timestamp: a.clock().UTC(),
		Data:      data,
	})
}

func (a *Announcer) publish(ctx context.Context, detailType string, evt model.PhaseEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	env := model.EventEnvelope{
		Source:     model.EventSource,
		DetailType: detailType,
		Detail:     evt,
	}
	if err := a.bus.Publish(pubCtx, detailType, env); err != nil {
		announceErrorsTotal.Inc()
		a.logger.Warn().
			Err(err).
			Int("phase", evt.Phase).
			Str("detail_type", detailType).
			Msg("phase announcement dropped")
		return
	}
	announcementsTotal.WithLabelValues(detailType, string(evt.Status)).Inc()
	a.logger.Debug().
		Int("phase", evt.Phase).
		Str("status", string(evt.Status)).
		Str("detail_type", detailType).
		Msg("phase announced")
}

// RunPhase executes one pipeline stage and guarantees an announcement either
// way: success on clean return, failure with the error payload before the
// error propagates. Crash paths must not be silent, the shutdown sequencer
// and alerting listen for exactly these events. A stage cut short by its own
// context being canceled announces nothing: that is an interruption, the
// redelivered run reports the real outcome.
func RunPhase(ctx context.Context, a *Announcer, phase int, data map[string]string, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return err
		}
		failData := make(map[string]string, len(data)+1)
		for k, v := range data {
			failData[k] = v
		}
		failData["error"] = err.Error()
		// Detach from the (possibly already canceled) stage context so the
		// failure announcement still goes out.
		a.Announce(context.WithoutCancel(ctx), phase, model.PhaseFailure, failData)
		return err
	}
	a.Announce(ctx, phase, model.PhaseSuccess, data)
	return nil
}
