// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"sync"
)

// MemoryNotifier records notifications for tests.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification

	// Err, when set, is returned from Publish to simulate channel failure.
	Err error
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (m *MemoryNotifier) Publish(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns a copy of everything published so far.
func (m *MemoryNotifier) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// BySeverity filters sent notifications.
func (m *MemoryNotifier) BySeverity(s Severity) []Notification {
	var out []Notification
	for _, n := range m.Sent() {
		if n.Severity == s {
			out = append(out, n)
		}
	}
	return out
}

var _ Notifier = (*MemoryNotifier)(nil)
