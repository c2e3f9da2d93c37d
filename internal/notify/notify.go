// SPDX-License-Identifier: MIT

// Package notify is the outbound alert channel. Publishing is fire-and-forget
// from the caller's perspective: failure to notify never fails the operation
// that wanted to notify, with the single exception of tests asserting on it.
package notify

import (
	"context"
	"time"
)

// Severity buckets notifications for routing and damping. Low-severity
// notices may be rate limited; high severity is always delivered.
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityHigh Severity = "high"
)

// Body is the structured JSON payload of every notification.
type Body struct {
	EventType  string         `json:"event_type"`
	InstanceID string         `json:"instance_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Reason     string         `json:"reason,omitempty"`
	Statistics map[string]any `json:"statistics,omitempty"`
	Status     string         `json:"status,omitempty"`
}

// Notification is one alert: a human-readable subject line plus the
// structured body.
type Notification struct {
	Subject  string   `json:"subject"`
	Severity Severity `json:"severity"`
	Body     Body     `json:"body"`
}

// Notifier publishes notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Publish(ctx context.Context, n Notification) error
}

// New builds a notification with the timestamp filled in.
func New(severity Severity, subject string, body Body) Notification {
	if body.Timestamp.IsZero() {
		body.Timestamp = time.Now().UTC()
	}
	return Notification{Subject: subject, Severity: severity, Body: body}
}
