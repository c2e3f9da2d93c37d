// SPDX-License-Identifier: MIT

// Package queue is the durable job transport between producers and the
// worker pool. Delivery is at-least-once: a message is deleted only after a
// worker acknowledges success, and redelivery after crash or timeout is the
// normal recovery path. Processing must therefore be idempotent on JobID.
package queue

import (
	"context"
	"time"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// Claim is one in-flight delivery. The receipt identifies this delivery (not
// the job): acknowledging or releasing uses the receipt so a redelivered
// copy of the same job cannot be acked by a stale holder.
type Claim struct {
	Job       model.Job
	Receipt   string
	ClaimedBy string
	ClaimedAt time.Time
	VisibleAt time.Time
}

// Nack reasons. "error" counts against the retry budget; "shutdown" releases
// the message without consuming an attempt.
const (
	NackError    = "error"
	NackShutdown = "shutdown"
)

// Queue is the durable job queue contract.
type Queue interface {
	// Enqueue adds a job to the pending queue.
	Enqueue(ctx context.Context, job model.Job) error

	// Claim atomically moves up to max pending jobs into the in-flight set
	// for this consumer. Claimed jobs become invisible to other consumers
	// until visibility elapses; after that an unacknowledged claim is
	// eligible for RequeueExpired. The returned jobs carry their delivery
	// attempt count; jobs whose budget is already exhausted are routed to
	// the dead-letter queue instead of being returned.
	Claim(ctx context.Context, max int, consumer string, visibility time.Duration) ([]Claim, error)

	// Ack deletes acknowledged deliveries permanently. Only called after
	// successful processing.
	Ack(ctx context.Context, claims []Claim) error

	// Nack releases deliveries back to pending (or to the dead-letter
	// queue once the retry budget is exhausted and reason is NackError).
	Nack(ctx context.Context, claims []Claim, reason string) error

	// RequeueExpired returns claims whose visibility lapsed (worker crash
	// or hang) to the pending queue. Returns the number requeued.
	RequeueExpired(ctx context.Context, now time.Time, max int) (int, error)

	// ListDeadLetters returns up to limit dead-lettered jobs, oldest first.
	ListDeadLetters(ctx context.Context, limit int) ([]model.Job, error)

	// RequeueDeadLetters moves the named jobs from the dead-letter queue
	// back to pending with a fresh retry budget. Returns how many moved.
	RequeueDeadLetters(ctx context.Context, jobIDs []string) (int, error)

	// Depth reports the number of pending (not in-flight) jobs.
	Depth(ctx context.Context) (int, error)
}
