// SPDX-License-Identifier: MIT

// Package phase implements the phase-chain protocol: each pipeline stage
// announces its completion or failure on a shared bus and never knows who
// listens. Delivery is best-effort; a consumer that must not miss events
// owns its durable subscription elsewhere.
package phase

import (
	"context"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// Topics on the bus. They are the two logical channels of the protocol.
const (
	TopicPhaseCompleted = model.DetailPhaseCompleted
	TopicTradingSignal  = model.DetailTradingSignal
)

// Bus is a typed publish/subscribe transport. The in-memory implementation
// serves tests and single-instance deployments; an external bus can satisfy
// the same interface in production.
type Bus interface {
	Publish(ctx context.Context, topic string, env model.EventEnvelope) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// Subscriber is one fan-out leg of a topic. Close detaches it; the channel
// is closed afterwards.
type Subscriber interface {
	C() <-chan model.EventEnvelope
	Close() error
}
