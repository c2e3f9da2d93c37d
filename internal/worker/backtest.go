// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/decimal"
	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/phase"
	"github.com/jsj9346/makenaide-sub006/internal/store"
)

// BacktestPhase is the pipeline ordinal backtest jobs report under.
const BacktestPhase = 4

// BacktestProcessor runs backtest jobs and persists their results. Results
// are keyed by JobID, so a redelivered job overwrites its own earlier result
// instead of duplicating it.
type BacktestProcessor struct {
	store  store.Store
	logger zerolog.Logger

	announcer *phase.Announcer
	minReturn float64
}

func NewBacktestProcessor(st store.Store) *BacktestProcessor {
	return &BacktestProcessor{store: st, logger: log.WithComponent("backtest")}
}

// WithSignals makes the processor announce a trading signal for strategies
// whose simulated return clears minReturn. Announcement is fire-and-forget;
// it never affects the job outcome.
func (p *BacktestProcessor) WithSignals(a *phase.Announcer, minReturn float64) *BacktestProcessor {
	p.announcer = a
	p.minReturn = minReturn
	return p
}

func (p *BacktestProcessor) Process(ctx context.Context, job model.Job) error {
	if job.JobType != model.JobTypeBacktest {
		return fmt.Errorf("unsupported job type %q", job.JobType)
	}
	strategy, _ := job.Parameters["strategy"].(string)
	if strategy == "" {
		return fmt.Errorf("job %s: missing strategy parameter", job.JobID)
	}

	days, err := rangeDays(job.DataRange)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.JobID, err)
	}

	// Deterministic walk seeded by job identity: the same job always
	// produces the same result, which keeps replays idempotent end to end.
	seed := fnv64(job.JobID + "|" + strategy)
	equity := 1.0
	peak := 1.0
	drawdown := 0.0
	trades := 0
	for d := 0; d < days; d++ {
		r := dailyReturn(seed, d)
		if math.Abs(r) > 0.005 {
			trades++
		}
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > drawdown {
			drawdown = dd
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	result := model.BacktestResult{
		JobID:       job.JobID,
		Strategy:    strategy,
		DataRange:   job.DataRange,
		TradeCount:  trades,
		TotalReturn: decimal.ExactFixed(equity-1, 6),
		MaxDrawdown: decimal.ExactFixed(drawdown, 6),
		FinishedAt:  time.Now().UTC(),
	}
	if err := p.store.PutJobResult(ctx, result); err != nil {
		return fmt.Errorf("job %s: persist result: %w", job.JobID, err)
	}
	if p.announcer != nil && equity-1 >= p.minReturn {
		p.announcer.AnnounceSignal(ctx, BacktestPhase, map[string]string{
			"job_id":       job.JobID,
			"strategy":     strategy,
			"total_return": result.TotalReturn,
		})
	}
	p.logger.Info().
		Str("job_id", job.JobID).
		Str("strategy", strategy).
		Int("days", days).
		Int("trades", trades).
		Str("total_return", result.TotalReturn).
		Msg("backtest complete")
	return nil
}

func rangeDays(r model.DataRange) (int, error) {
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return 0, fmt.Errorf("invalid start date %q: %w", r.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return 0, fmt.Errorf("invalid end date %q: %w", r.EndDate, err)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days <= 0 {
		return 0, fmt.Errorf("empty data range %s..%s", r.StartDate, r.EndDate)
	}
	return days, nil
}

func fnv64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// dailyReturn maps (seed, day) to a small pseudo-random return in
// roughly [-1.5%, +1.6%].
func dailyReturn(seed uint64, day int) float64 {
	x := seed + uint64(day)*0x9e3779b97f4a7c15
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	return (float64(x%3101) - 1500) / 100000
}

var _ Processor = (*BacktestProcessor)(nil)
