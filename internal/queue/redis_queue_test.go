// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

func newTestRedisQueue(t *testing.T, maxAttempts int) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueueWithClient(client, RedisQueueConfig{
		Key:         "test:jobs",
		MaxAttempts: maxAttempts,
	})
}

func testJob(id string) model.Job {
	return model.Job{
		JobID:   id,
		JobType: model.JobTypeBacktest,
		Parameters: map[string]any{
			"strategy": "momentum",
		},
		DataRange: model.DataRange{StartDate: "2026-01-01", EndDate: "2026-06-30"},
	}
}

func TestRedisQueueEnqueueClaimAck(t *testing.T) {
	q := newTestRedisQueue(t, 5)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("job-1")))
	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	claims, err := q.Claim(ctx, 10, "worker-a", 15*time.Second)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "job-1", claims[0].Job.JobID)
	assert.Equal(t, 1, claims[0].Job.Attempt)
	assert.Equal(t, "worker-a", claims[0].ClaimedBy)

	// Claimed jobs are invisible to other consumers.
	other, err := q.Claim(ctx, 10, "worker-b", 15*time.Second)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, q.Ack(ctx, claims))
	depth, err = q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	// Acked jobs never come back.
	again, err := q.Claim(ctx, 10, "worker-b", 15*time.Second)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRedisQueueFIFOOrder(t *testing.T) {
	q := newTestRedisQueue(t, 5)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, testJob(fmt.Sprintf("job-%d", i))))
	}
	claims, err := q.Claim(ctx, 3, "worker-a", time.Minute)
	require.NoError(t, err)
	require.Len(t, claims, 3)
	for i, c := range claims {
		assert.Equal(t, fmt.Sprintf("job-%d", i), c.Job.JobID)
	}
}

func TestRedisQueueNackErrorRedelivers(t *testing.T) {
	q := newTestRedisQueue(t, 5)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("job-1")))

	claims, err := q.Claim(ctx, 1, "worker-a", time.Minute)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	require.NoError(t, q.Nack(ctx, claims, NackError))

	// The job is pending again and the attempt counter advanced.
	claims, err = q.Claim(ctx, 1, "worker-a", time.Minute)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, 2, claims[0].Job.Attempt)
}

func TestRedisQueueDeadLetterAfterBudgetExhausted(t *testing.T) {
	const maxAttempts = 3
	q := newTestRedisQueue(t, maxAttempts)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("doomed")))

	for i := 1; i <= maxAttempts; i++ {
		claims, err := q.Claim(ctx, 1, "worker-a", time.Minute)
		require.NoError(t, err)
		require.Len(t, claims, 1, "delivery %d", i)
		assert.Equal(t, i, claims[0].Job.Attempt)
		require.NoError(t, q.Nack(ctx, claims, NackError))
	}

	// Budget is gone: no further delivery.
	claims, err := q.Claim(ctx, 1, "worker-a", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claims)

	dead, err := q.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "doomed", dead[0].JobID)
}

func TestRedisQueueShutdownNackDoesNotConsumeAttempt(t *testing.T) {
	q := newTestRedisQueue(t, 5)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("job-1")))

	claims, err := q.Claim(ctx, 1, "worker-a", time.Minute)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, 1, claims[0].Job.Attempt)
	require.NoError(t, q.Nack(ctx, claims, NackShutdown))

	claims, err = q.Claim(ctx, 1, "worker-b", time.Minute)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, 1, claims[0].Job.Attempt, "shutdown release must refund the attempt")
}

func TestRedisQueueRequeueExpiredRecoversCrashedClaims(t *testing.T) {
	q := newTestRedisQueue(t, 5)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("job-1")))

	claims, err := q.Claim(ctx, 1, "worker-a", 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, claims, 1)

	// Not yet expired: nothing to requeue.
	n, err := q.RequeueExpired(ctx, claims[0].ClaimedAt, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Past the visibility deadline the claim is recovered.
	n, err = q.RequeueExpired(ctx, claims[0].VisibleAt.Add(time.Millisecond), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	redelivered, err := q.Claim(ctx, 1, "worker-b", time.Minute)
	require.NoError(t, err)
	require.Len(t, redelivered, 1)
	assert.Equal(t, "job-1", redelivered[0].Job.JobID)
	assert.Equal(t, 2, redelivered[0].Job.Attempt)

	// The crashed holder's receipt is dead; its ack must not delete the
	// redelivered copy.
	require.NoError(t, q.Ack(ctx, claims))
	stillHeld, err := q.client.HExists(ctx, q.claimsKey(), redelivered[0].Receipt).Result()
	require.NoError(t, err)
	assert.True(t, stillHeld)
}

func TestRedisQueueRequeueDeadLetters(t *testing.T) {
	q := newTestRedisQueue(t, 1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("dead-1")))
	require.NoError(t, q.Enqueue(ctx, testJob("dead-2")))
	for i := 0; i < 2; i++ {
		claims, err := q.Claim(ctx, 1, "worker-a", time.Minute)
		require.NoError(t, err)
		require.Len(t, claims, 1)
		require.NoError(t, q.Nack(ctx, claims, NackError))
	}

	dead, err := q.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 2)

	moved, err := q.RequeueDeadLetters(ctx, []string{"dead-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	// Replayed job comes back with a fresh budget.
	claims, err := q.Claim(ctx, 10, "worker-a", time.Minute)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "dead-2", claims[0].Job.JobID)
	assert.Equal(t, 1, claims[0].Job.Attempt)

	dead, err = q.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "dead-1", dead[0].JobID)
}

func TestRedisQueueMalformedPayloadGoesToDeadLetters(t *testing.T) {
	q := newTestRedisQueue(t, 5)
	ctx := context.Background()

	require.NoError(t, q.client.LPush(ctx, q.pendingKey(), "not json").Err())
	require.NoError(t, q.Enqueue(ctx, testJob("job-1")))

	claims, err := q.Claim(ctx, 10, "worker-a", time.Minute)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "job-1", claims[0].Job.JobID)

	raw, err := q.client.LRange(ctx, q.deadKey(), 0, -1).Result()
	require.NoError(t, err)
	assert.Contains(t, raw, "not json")
}

func TestRedisQueueRejectsInvalidJob(t *testing.T) {
	q := newTestRedisQueue(t, 5)
	err := q.Enqueue(context.Background(), model.Job{JobType: model.JobTypeBacktest})
	require.Error(t, err)
}
