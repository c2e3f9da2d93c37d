// SPDX-License-Identifier: MIT

package phase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/notify"
)

// FailureAlerter bridges phase failures to the notification channel. It is
// one of the decoupled listeners the protocol allows: stages announce without
// knowing the alerter exists.
type FailureAlerter struct {
	bus      Bus
	notifier notify.Notifier
	logger   zerolog.Logger
}

func NewFailureAlerter(bus Bus, n notify.Notifier) *FailureAlerter {
	return &FailureAlerter{bus: bus, notifier: n, logger: log.WithComponent("phase-alerter")}
}

// Run consumes phase lifecycle events until ctx is canceled, raising a
// high-severity notification for every failure.
func (a *FailureAlerter) Run(ctx context.Context) error {
	sub, err := a.bus.Subscribe(ctx, TopicPhaseCompleted)
	if err != nil {
		return fmt.Errorf("phase alerter: %w", err)
	}
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-sub.C():
			if !ok {
				return nil
			}
			if env.Detail.Status != model.PhaseFailure {
				continue
			}
			n := notify.New(notify.SeverityHigh,
				fmt.Sprintf("pipeline phase %d failed", env.Detail.Phase),
				notify.Body{
					EventType: "phase_failure",
					Reason:    env.Detail.Data["error"],
					Status:    string(model.PhaseFailure),
				})
			if err := a.notifier.Publish(ctx, n); err != nil {
				a.logger.Warn().Err(err).Int("phase", env.Detail.Phase).Msg("failure alert not delivered")
			}
		}
	}
}
