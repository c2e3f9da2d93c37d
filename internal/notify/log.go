// SPDX-License-Identifier: MIT

package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
)

// LogNotifier writes notifications to the structured log. Used when no
// webhook is configured so alerts still land somewhere observable.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.WithComponent("notify")}
}

func (l *LogNotifier) Publish(_ context.Context, n Notification) error {
	evt := l.logger.Info()
	if n.Severity == SeverityHigh {
		evt = l.logger.Error()
	}
	evt.
		Str("subject", n.Subject).
		Str("event_type", n.Body.EventType).
		Str("instance_id", n.Body.InstanceID).
		Str("reason", n.Body.Reason).
		Str("status", n.Body.Status).
		Msg("notification")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
