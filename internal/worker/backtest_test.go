// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/store"
)

func newBacktestFixture(t *testing.T) (*BacktestProcessor, *store.BadgerStore) {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewBacktestProcessor(st), st
}

func TestBacktestWritesResult(t *testing.T) {
	proc, st := newBacktestFixture(t)
	ctx := context.Background()

	require.NoError(t, proc.Process(ctx, poolJob("job-1")))

	res, err := st.GetJobResult(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "momentum", res.Strategy)
	assert.NotEmpty(t, res.TotalReturn)
	assert.NotEmpty(t, res.MaxDrawdown)
	assert.False(t, res.FinishedAt.IsZero())
}

func TestBacktestReplayIsIdempotent(t *testing.T) {
	proc, st := newBacktestFixture(t)
	ctx := context.Background()

	job := poolJob("job-1")
	require.NoError(t, proc.Process(ctx, job))
	first, err := st.GetJobResult(ctx, "job-1")
	require.NoError(t, err)

	// Redelivery of the same job: same numbers, still one result row.
	job.Attempt = 2
	require.NoError(t, proc.Process(ctx, job))
	second, err := st.GetJobResult(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, first.TotalReturn, second.TotalReturn)
	assert.Equal(t, first.MaxDrawdown, second.MaxDrawdown)
	assert.Equal(t, first.TradeCount, second.TradeCount)

	all, err := st.ListJobResults(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBacktestRejectsBadJobs(t *testing.T) {
	proc, _ := newBacktestFixture(t)
	ctx := context.Background()

	t.Run("wrong type", func(t *testing.T) {
		job := poolJob("job-1")
		job.JobType = "LIVE"
		require.Error(t, proc.Process(ctx, job))
	})
	t.Run("missing strategy", func(t *testing.T) {
		job := poolJob("job-1")
		job.Parameters = map[string]any{}
		require.Error(t, proc.Process(ctx, job))
	})
	t.Run("inverted range", func(t *testing.T) {
		job := poolJob("job-1")
		job.DataRange = model.DataRange{StartDate: "2026-06-30", EndDate: "2026-01-01"}
		require.Error(t, proc.Process(ctx, job))
	})
}
