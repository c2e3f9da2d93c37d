// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/queue"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed []model.Job
	fail      map[string]int // job id -> remaining failures
	done      chan string
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{
		fail: make(map[string]int),
		done: make(chan string, 64),
	}
}

func (r *recordingProcessor) Process(_ context.Context, job model.Job) error {
	r.mu.Lock()
	r.processed = append(r.processed, job)
	remaining := r.fail[job.JobID]
	if remaining > 0 {
		r.fail[job.JobID] = remaining - 1
	}
	r.mu.Unlock()
	if remaining > 0 {
		return errors.New("simulated failure")
	}
	r.done <- job.JobID
	return nil
}

func (r *recordingProcessor) count(jobID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.processed {
		if j.JobID == jobID {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for job %s", want)
		}
	}
}

func poolJob(id string) model.Job {
	return model.Job{
		JobID:      id,
		JobType:    model.JobTypeBacktest,
		Parameters: map[string]any{"strategy": "momentum"},
		DataRange:  model.DataRange{StartDate: "2026-01-01", EndDate: "2026-01-31"},
	}
}

func runPool(t *testing.T, p *Pool) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("pool did not stop")
		}
	})
	return cancel
}

func TestPoolProcessesAndAcks(t *testing.T) {
	q := queue.NewMemoryQueue(5)
	proc := newRecordingProcessor()
	pool := NewPool(q, proc, PoolConfig{Concurrency: 2, PollInterval: 10 * time.Millisecond})

	require.NoError(t, q.Enqueue(context.Background(), poolJob("job-1")))
	runPool(t, pool)

	waitFor(t, proc.done, "job-1")
	require.Eventually(t, func() bool {
		depth, err := q.Depth(context.Background())
		return err == nil && depth == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, proc.count("job-1"))
}

func TestPoolRetriesFailedJobUntilSuccess(t *testing.T) {
	q := queue.NewMemoryQueue(5)
	proc := newRecordingProcessor()
	proc.fail["flaky"] = 2
	pool := NewPool(q, proc, PoolConfig{Concurrency: 1, PollInterval: 10 * time.Millisecond})

	require.NoError(t, q.Enqueue(context.Background(), poolJob("flaky")))
	runPool(t, pool)

	waitFor(t, proc.done, "flaky")
	assert.Equal(t, 3, proc.count("flaky"), "two failures then one success")
}

func TestPoolDeadLettersAfterBudget(t *testing.T) {
	const maxAttempts = 3
	q := queue.NewMemoryQueue(maxAttempts)
	proc := newRecordingProcessor()
	proc.fail["doomed"] = 100
	pool := NewPool(q, proc, PoolConfig{Concurrency: 1, PollInterval: 10 * time.Millisecond})

	require.NoError(t, q.Enqueue(context.Background(), poolJob("doomed")))
	runPool(t, pool)

	require.Eventually(t, func() bool {
		dead, err := q.ListDeadLetters(context.Background(), 10)
		return err == nil && len(dead) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, maxAttempts, proc.count("doomed"))
}

func TestCrashedWorkerClaimIsRedeliveredViaSweeper(t *testing.T) {
	q := queue.NewMemoryQueue(5)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, poolJob("job-1")))

	// First delivery is claimed and never acked (worker crash).
	claims, err := q.Claim(ctx, 1, "crashed-worker", 30*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, claims, 1)

	sweeper := NewSweeper(q, 10*time.Millisecond, 10)
	sctx, scancel := context.WithCancel(ctx)
	sdone := make(chan struct{})
	go func() {
		defer close(sdone)
		_ = sweeper.Run(sctx)
	}()
	defer func() {
		scancel()
		<-sdone
	}()

	proc := newRecordingProcessor()
	pool := NewPool(q, proc, PoolConfig{Concurrency: 1, PollInterval: 10 * time.Millisecond})
	runPool(t, pool)

	waitFor(t, proc.done, "job-1")
	// The redelivered copy carries a later attempt.
	proc.mu.Lock()
	attempt := proc.processed[0].Attempt
	proc.mu.Unlock()
	assert.Equal(t, 2, attempt)
}

func TestPoolShutdownReleasesWithoutConsumingAttempt(t *testing.T) {
	q := queue.NewMemoryQueue(5)
	ctx := context.Background()

	blocker := make(chan struct{})
	proc := &blockingProcessor{started: make(chan struct{}, 1), release: blocker}
	pool := NewPool(q, proc, PoolConfig{Concurrency: 1, ClaimBatch: 2, PollInterval: 10 * time.Millisecond})

	require.NoError(t, q.Enqueue(ctx, poolJob("job-1")))
	require.NoError(t, q.Enqueue(ctx, poolJob("job-2")))

	cancel := runPool(t, pool)
	<-proc.started
	cancel()
	close(blocker)

	// job-2 was claimed but never processed; shutdown release leaves it
	// pending with its attempt refunded.
	require.Eventually(t, func() bool {
		claims, err := q.Claim(ctx, 2, "checker", time.Minute)
		if err != nil || len(claims) == 0 {
			return false
		}
		defer func() { _ = q.Nack(ctx, claims, queue.NackShutdown) }()
		for _, c := range claims {
			if c.Job.JobID == "job-2" && c.Job.Attempt == 1 {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingProcessor) Process(ctx context.Context, _ model.Job) error {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
		return ctx.Err()
	case <-ctx.Done():
		<-b.release
		return ctx.Err()
	}
}
