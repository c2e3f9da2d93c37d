// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// RedisQueueConfig configures the redis-backed queue.
type RedisQueueConfig struct {
	Addr     string
	Password string
	DB       int

	// Key is the base key; the queue derives :pending, :claims,
	// :visibility, :attempts and :dead from it.
	Key string

	// MaxAttempts bounds deliveries per job before dead-lettering.
	MaxAttempts int
}

// RedisQueue implements Queue on redis structures:
//
//	{key}:pending     list  jobs awaiting delivery (JSON payloads)
//	{key}:claims      hash  receipt -> payload for in-flight deliveries
//	{key}:visibility  zset  receipt -> visibility deadline (unix ms)
//	{key}:attempts    hash  job_id -> delivery count
//	{key}:dead        list  jobs whose retry budget is exhausted
//
// Redis arbitrates the visibility state; workers need no shared locking.
type RedisQueue struct {
	client *redis.Client
	cfg    RedisQueueConfig
	logger zerolog.Logger
}

// NewRedisQueue connects to redis and verifies the connection.
func NewRedisQueue(ctx context.Context, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Key == "" {
		cfg.Key = "makenaide:jobs"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisQueue{
		client: client,
		cfg:    cfg,
		logger: log.WithComponent("queue"),
	}, nil
}

// NewRedisQueueWithClient wraps an existing client (tests use miniredis).
func NewRedisQueueWithClient(client *redis.Client, cfg RedisQueueConfig) *RedisQueue {
	if cfg.Key == "" {
		cfg.Key = "makenaide:jobs"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &RedisQueue{client: client, cfg: cfg, logger: log.WithComponent("queue")}
}

func (q *RedisQueue) Close() error { return q.client.Close() }

func (q *RedisQueue) pendingKey() string    { return q.cfg.Key + ":pending" }
func (q *RedisQueue) claimsKey() string     { return q.cfg.Key + ":claims" }
func (q *RedisQueue) visibilityKey() string { return q.cfg.Key + ":visibility" }
func (q *RedisQueue) attemptsKey() string   { return q.cfg.Key + ":attempts" }
func (q *RedisQueue) deadKey() string       { return q.cfg.Key + ":dead" }

func (q *RedisQueue) Enqueue(ctx context.Context, job model.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	job.Attempt = 0
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}
	if err := q.client.LPush(ctx, q.pendingKey(), payload).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.JobID, err)
	}
	q.logger.Debug().Str("job_id", job.JobID).Str("job_type", job.JobType).Msg("job enqueued")
	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, max int, consumer string, visibility time.Duration) ([]Claim, error) {
	if max <= 0 {
		max = 1
	}
	if visibility <= 0 {
		visibility = 15 * time.Second
	}

	now := time.Now().UTC()
	out := make([]Claim, 0, max)
	for i := 0; i < max; i++ {
		payload, err := q.client.RPop(ctx, q.pendingKey()).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("claim: %w", err)
		}

		var job model.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil || job.Validate() != nil {
			// Malformed payloads go straight to the dead-letter queue;
			// there is nothing a retry could fix.
			_ = q.client.LPush(ctx, q.deadKey(), payload).Err()
			deadLetteredTotal.WithLabelValues("redis").Inc()
			q.logger.Warn().Str("payload", payload).Msg("malformed job payload dead-lettered")
			continue
		}

		attempts, err := q.client.HIncrBy(ctx, q.attemptsKey(), job.JobID, 1).Result()
		if err != nil {
			return out, fmt.Errorf("claim: count attempt for %s: %w", job.JobID, err)
		}
		if int(attempts) > q.cfg.MaxAttempts {
			// Budget exhausted before this delivery (crash-loop path):
			// route to dead letters instead of handing it out again.
			if err := q.deadLetter(ctx, job.JobID, payload); err != nil {
				return out, err
			}
			continue
		}
		job.Attempt = int(attempts)

		receipt := fmt.Sprintf("%s:%s", consumer, uuid.New().String())
		visibleAt := now.Add(visibility)
		if err := q.client.HSet(ctx, q.claimsKey(), receipt, payload).Err(); err != nil {
			return out, fmt.Errorf("claim: record receipt: %w", err)
		}
		if err := q.client.ZAdd(ctx, q.visibilityKey(), redis.Z{
			Score:  float64(visibleAt.UnixMilli()),
			Member: receipt,
		}).Err(); err != nil {
			return out, fmt.Errorf("claim: record visibility: %w", err)
		}

		out = append(out, Claim{
			Job:       job,
			Receipt:   receipt,
			ClaimedBy: consumer,
			ClaimedAt: now,
			VisibleAt: visibleAt,
		})
	}
	if len(out) > 0 {
		claimedTotal.WithLabelValues("redis").Add(float64(len(out)))
	}
	return out, nil
}

func (q *RedisQueue) Ack(ctx context.Context, claims []Claim) error {
	for _, c := range claims {
		removed, err := q.client.HDel(ctx, q.claimsKey(), c.Receipt).Result()
		if err != nil {
			return fmt.Errorf("ack %s: %w", c.Job.JobID, err)
		}
		if removed == 0 {
			// Stale receipt: the claim expired and was requeued. The job
			// will be (or was) processed again; idempotency covers it.
			q.logger.Warn().Str("job_id", c.Job.JobID).Msg("ack with stale receipt ignored")
			continue
		}
		if err := q.client.ZRem(ctx, q.visibilityKey(), c.Receipt).Err(); err != nil {
			return fmt.Errorf("ack %s: %w", c.Job.JobID, err)
		}
		if err := q.client.HDel(ctx, q.attemptsKey(), c.Job.JobID).Err(); err != nil {
			return fmt.Errorf("ack %s: %w", c.Job.JobID, err)
		}
		ackedTotal.WithLabelValues("redis").Inc()
	}
	return nil
}

func (q *RedisQueue) Nack(ctx context.Context, claims []Claim, reason string) error {
	for _, c := range claims {
		payload, err := q.client.HGet(ctx, q.claimsKey(), c.Receipt).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("nack %s: %w", c.Job.JobID, err)
		}

		if reason == NackError && c.Job.Attempt >= q.cfg.MaxAttempts {
			if err := q.deadLetter(ctx, c.Job.JobID, payload); err != nil {
				return err
			}
		} else {
			if reason != NackError {
				// Releasing without a processing failure (e.g. shutdown)
				// refunds the attempt.
				if err := q.client.HIncrBy(ctx, q.attemptsKey(), c.Job.JobID, -1).Err(); err != nil {
					return fmt.Errorf("nack %s: %w", c.Job.JobID, err)
				}
			}
			if err := q.client.LPush(ctx, q.pendingKey(), payload).Err(); err != nil {
				return fmt.Errorf("nack %s: %w", c.Job.JobID, err)
			}
		}

		if err := q.client.HDel(ctx, q.claimsKey(), c.Receipt).Err(); err != nil {
			return fmt.Errorf("nack %s: %w", c.Job.JobID, err)
		}
		if err := q.client.ZRem(ctx, q.visibilityKey(), c.Receipt).Err(); err != nil {
			return fmt.Errorf("nack %s: %w", c.Job.JobID, err)
		}
		nackedTotal.WithLabelValues("redis", reason).Inc()
	}
	return nil
}

func (q *RedisQueue) RequeueExpired(ctx context.Context, now time.Time, max int) (int, error) {
	if max <= 0 {
		max = 100
	}
	receipts, err := q.client.ZRangeByScore(ctx, q.visibilityKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: int64(max),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("requeue expired: %w", err)
	}

	requeued := 0
	for _, receipt := range receipts {
		payload, err := q.client.HGet(ctx, q.claimsKey(), receipt).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return requeued, fmt.Errorf("requeue expired: %w", err)
		}
		if err == nil && payload != "" {
			if err := q.client.LPush(ctx, q.pendingKey(), payload).Err(); err != nil {
				return requeued, fmt.Errorf("requeue expired: %w", err)
			}
			requeued++
		}
		if err := q.client.HDel(ctx, q.claimsKey(), receipt).Err(); err != nil {
			return requeued, fmt.Errorf("requeue expired: %w", err)
		}
		if err := q.client.ZRem(ctx, q.visibilityKey(), receipt).Err(); err != nil {
			return requeued, fmt.Errorf("requeue expired: %w", err)
		}
	}
	if requeued > 0 {
		expiredRequeuedTotal.WithLabelValues("redis").Add(float64(requeued))
		q.logger.Info().Int("requeued", requeued).Msg("expired claims returned to pending")
	}
	return requeued, nil
}

func (q *RedisQueue) ListDeadLetters(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	items, err := q.client.LRange(ctx, q.deadKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	out := make([]model.Job, 0, len(items))
	for _, raw := range items {
		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (q *RedisQueue) RequeueDeadLetters(ctx context.Context, jobIDs []string) (int, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}
	wanted := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		wanted[id] = true
	}

	items, err := q.client.LRange(ctx, q.deadKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("requeue dead letters: %w", err)
	}
	requeued := 0
	for _, raw := range items {
		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil || !wanted[job.JobID] {
			continue
		}
		removed, err := q.client.LRem(ctx, q.deadKey(), 1, raw).Result()
		if err != nil {
			return requeued, fmt.Errorf("requeue dead letters: %w", err)
		}
		if removed == 0 {
			continue
		}
		// Fresh retry budget on replay.
		if err := q.client.HDel(ctx, q.attemptsKey(), job.JobID).Err(); err != nil {
			return requeued, fmt.Errorf("requeue dead letters: %w", err)
		}
		if err := q.client.LPush(ctx, q.pendingKey(), raw).Err(); err != nil {
			return requeued, fmt.Errorf("requeue dead letters: %w", err)
		}
		requeued++
	}
	return requeued, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return int(n), nil
}

func (q *RedisQueue) deadLetter(ctx context.Context, jobID, payload string) error {
	if err := q.client.LPush(ctx, q.deadKey(), payload).Err(); err != nil {
		return fmt.Errorf("dead-letter %s: %w", jobID, err)
	}
	if err := q.client.HDel(ctx, q.attemptsKey(), jobID).Err(); err != nil {
		return fmt.Errorf("dead-letter %s: %w", jobID, err)
	}
	deadLetteredTotal.WithLabelValues("redis").Inc()
	q.logger.Warn().Str("job_id", jobID).Int("max_attempts", q.cfg.MaxAttempts).Msg("job dead-lettered")
	return nil
}

var _ Queue = (*RedisQueue)(nil)
