// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// MemoryQueue is an in-process Queue with the same visibility and retry
// semantics as the redis backend. Used by tests and single-process setups.
type MemoryQueue struct {
	mu          sync.Mutex
	pending     []model.Job
	claims      map[string]memClaim
	attempts    map[string]int
	dead        []model.Job
	maxAttempts int
}

type memClaim struct {
	job       model.Job
	visibleAt time.Time
}

func NewMemoryQueue(maxAttempts int) *MemoryQueue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &MemoryQueue{
		claims:      make(map[string]memClaim),
		attempts:    make(map[string]int),
		maxAttempts: maxAttempts,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job model.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	job.Attempt = 0
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, job)
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, max int, consumer string, visibility time.Duration) ([]Claim, error) {
	if max <= 0 {
		max = 1
	}
	if visibility <= 0 {
		visibility = 15 * time.Second
	}
	now := time.Now().UTC()

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Claim, 0, max)
	for len(out) < max && len(q.pending) > 0 {
		job := q.pending[0]
		q.pending = q.pending[1:]

		q.attempts[job.JobID]++
		attempts := q.attempts[job.JobID]
		if attempts > q.maxAttempts {
			q.dead = append(q.dead, job)
			delete(q.attempts, job.JobID)
			deadLetteredTotal.WithLabelValues("memory").Inc()
			continue
		}
		job.Attempt = attempts

		receipt := consumer + ":" + uuid.New().String()
		visibleAt := now.Add(visibility)
		q.claims[receipt] = memClaim{job: job, visibleAt: visibleAt}
		out = append(out, Claim{
			Job:       job,
			Receipt:   receipt,
			ClaimedBy: consumer,
			ClaimedAt: now,
			VisibleAt: visibleAt,
		})
	}
	if len(out) > 0 {
		claimedTotal.WithLabelValues("memory").Add(float64(len(out)))
	}
	return out, nil
}

func (q *MemoryQueue) Ack(_ context.Context, claims []Claim) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range claims {
		if _, held := q.claims[c.Receipt]; !held {
			continue
		}
		delete(q.claims, c.Receipt)
		delete(q.attempts, c.Job.JobID)
		ackedTotal.WithLabelValues("memory").Inc()
	}
	return nil
}

func (q *MemoryQueue) Nack(_ context.Context, claims []Claim, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range claims {
		held, ok := q.claims[c.Receipt]
		if !ok {
			continue
		}
		delete(q.claims, c.Receipt)

		job := held.job
		job.Attempt = 0
		if reason == NackError && c.Job.Attempt >= q.maxAttempts {
			q.dead = append(q.dead, job)
			delete(q.attempts, job.JobID)
			deadLetteredTotal.WithLabelValues("memory").Inc()
		} else {
			if reason != NackError {
				q.attempts[job.JobID]--
			}
			q.pending = append(q.pending, job)
		}
		nackedTotal.WithLabelValues("memory", reason).Inc()
	}
	return nil
}

func (q *MemoryQueue) RequeueExpired(_ context.Context, now time.Time, max int) (int, error) {
	if max <= 0 {
		max = 100
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	requeued := 0
	for receipt, held := range q.claims {
		if requeued >= max {
			break
		}
		if held.visibleAt.After(now) {
			continue
		}
		delete(q.claims, receipt)
		job := held.job
		job.Attempt = 0
		q.pending = append(q.pending, job)
		requeued++
	}
	if requeued > 0 {
		expiredRequeuedTotal.WithLabelValues("memory").Add(float64(requeued))
	}
	return requeued, nil
}

func (q *MemoryQueue) ListDeadLetters(_ context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > len(q.dead) {
		limit = len(q.dead)
	}
	out := make([]model.Job, limit)
	copy(out, q.dead[:limit])
	return out, nil
}

func (q *MemoryQueue) RequeueDeadLetters(_ context.Context, jobIDs []string) (int, error) {
	wanted := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		wanted[id] = true
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.dead[:0]
	requeued := 0
	for _, job := range q.dead {
		if wanted[job.JobID] {
			delete(q.attempts, job.JobID)
			job.Attempt = 0
			q.pending = append(q.pending, job)
			requeued++
			continue
		}
		kept = append(kept, job)
	}
	q.dead = kept
	return requeued, nil
}

func (q *MemoryQueue) Depth(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), nil
}

var _ Queue = (*MemoryQueue)(nil)
