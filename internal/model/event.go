// SPDX-License-Identifier: MIT

package model

import "time"

// PhaseStatus is the outcome a pipeline stage reports for itself.
type PhaseStatus string

const (
	PhaseSuccess PhaseStatus = "success"
	PhaseFailure PhaseStatus = "failure"
)

// Detail types on the shared event bus. Listeners filter on these; producers
// never know who (if anyone) is subscribed.
const (
	DetailPhaseCompleted = "Phase Completed"
	DetailTradingSignal  = "Trading Signal"
)

// EventSource identifies this pipeline as the producer on the bus.
const EventSource = "pipeline"

// PhaseEvent is the completion (or failure) report of one pipeline stage.
// No cross-phase ordering is guaranteed; listeners must not assume they see
// every phase or see them in numeric order.
type PhaseEvent struct {
	Phase     int               `json:"phase"`
	Status    PhaseStatus       `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// EventEnvelope is the wire format published to the bus.
type EventEnvelope struct {
	Source     string     `json:"source"`
	DetailType string     `json:"detail_type"`
	Detail     PhaseEvent `json:"detail"`
}
