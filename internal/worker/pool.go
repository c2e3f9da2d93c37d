// SPDX-License-Identifier: MIT

// Package worker consumes jobs from the queue and executes them. Delivery is
// at-least-once, so every Processor must be idempotent on JobID.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/queue"
)

// Processor executes one job. Returning an error releases the delivery for
// retry; the queue dead-letters it once the retry budget is spent.
type Processor interface {
	Process(ctx context.Context, job model.Job) error
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	// Consumer is the pool's consumer ID prefix; each slot appends its index.
	Consumer string
	// Concurrency is the number of claim-process loops.
	Concurrency int
	// ClaimBatch is the max jobs claimed per poll.
	ClaimBatch int
	// Visibility is how long a claim stays invisible before the sweeper may
	// hand it to another worker. Must exceed the worst-case job duration.
	Visibility time.Duration
	// PollInterval is the idle wait between empty polls.
	PollInterval time.Duration
}

func (c *PoolConfig) withDefaults() PoolConfig {
	out := *c
	if out.Consumer == "" {
		out.Consumer = "worker"
	}
	if out.Concurrency <= 0 {
		out.Concurrency = 1
	}
	if out.ClaimBatch <= 0 {
		out.ClaimBatch = 1
	}
	if out.Visibility <= 0 {
		out.Visibility = 15 * time.Second
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 2 * time.Second
	}
	return out
}

// Pool runs N concurrent claim-process-ack loops over one queue.
type Pool struct {
	queue     queue.Queue
	processor Processor
	cfg       PoolConfig
	logger    zerolog.Logger
}

func NewPool(q queue.Queue, p Processor, cfg PoolConfig) *Pool {
	return &Pool{
		queue:     q,
		processor: p,
		cfg:       cfg.withDefaults(),
		logger:    log.WithComponent("worker"),
	}
}

// Run blocks until ctx is canceled, then drains: claims already held are
// released without consuming a retry attempt.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", p.cfg.Consumer, i)
		g.Go(func() error {
			return p.loop(ctx, consumer)
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Pool) loop(ctx context.Context, consumer string) error {
	logger := p.logger.With().Str("consumer", consumer).Logger()
	for {
		if ctx.Err() != nil {
			return nil
		}
		claims, err := p.queue.Claim(ctx, p.cfg.ClaimBatch, consumer, p.cfg.Visibility)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("claim failed")
			if !sleep(ctx, p.cfg.PollInterval) {
				return nil
			}
			continue
		}
		if len(claims) == 0 {
			if !sleep(ctx, p.cfg.PollInterval) {
				return nil
			}
			continue
		}
		for i, c := range claims {
			if ctx.Err() != nil {
				// Shutting down: hand the rest back untouched.
				p.release(ctx, claims[i:], queue.NackShutdown)
				return nil
			}
			p.handle(ctx, logger, c)
		}
	}
}

func (p *Pool) handle(ctx context.Context, logger zerolog.Logger, c queue.Claim) {
	jlog := logger.With().
		Str("job_id", c.Job.JobID).
		Str("job_type", c.Job.JobType).
		Int("attempt", c.Job.Attempt).
		Logger()

	start := time.Now()
	err := p.processor.Process(ctx, c.Job)
	jobDuration.WithLabelValues(c.Job.JobType).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			// Interrupted, not failed: no attempt consumed.
			p.release(ctx, []queue.Claim{c}, queue.NackShutdown)
			return
		}
		jobsProcessedTotal.WithLabelValues(c.Job.JobType, "failure").Inc()
		jlog.Error().Err(err).Msg("job failed")
		p.release(ctx, []queue.Claim{c}, queue.NackError)
		return
	}

	// Ack must reach the queue even when ctx was canceled mid-job; losing it
	// would redeliver a job that already committed its result.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.queue.Ack(ackCtx, []queue.Claim{c}); err != nil {
		jlog.Error().Err(err).Msg("ack failed, job will be redelivered")
		return
	}
	jobsProcessedTotal.WithLabelValues(c.Job.JobType, "success").Inc()
	jlog.Info().Dur("duration", time.Since(start)).Msg("job done")
}

func (p *Pool) release(ctx context.Context, claims []queue.Claim, reason string) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.queue.Nack(nctx, claims, reason); err != nil {
		p.logger.Error().Err(err).Str("reason", reason).Msg("release failed, claims expire via visibility timeout")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
