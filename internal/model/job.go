// SPDX-License-Identifier: MIT

package model

import "fmt"

// Job types the worker pool understands. Routing uses the message attribute,
// not the payload, so filters stay cheap.
const (
	JobTypeBacktest = "BACKTEST"
)

// DataRange bounds the historical data a job operates on. Dates are
// YYYY-MM-DD strings; the persistence layer owns finer granularity.
type DataRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Job is a unit of work delivered through the durable queue. JobID is the
// idempotency key: the queue delivers at least once, so processing the same
// JobID twice must not double-apply side effects.
type Job struct {
	JobID      string         `json:"job_id"`
	JobType    string         `json:"job_type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	DataRange  DataRange      `json:"data_range"`

	// Attempt is maintained by the queue, not the producer. It counts
	// deliveries, starting at 1.
	Attempt int `json:"attempt,omitempty"`
}

// Validate rejects jobs that cannot be processed idempotently.
func (j Job) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("job missing job_id")
	}
	if j.JobType == "" {
		return fmt.Errorf("job %s missing job_type", j.JobID)
	}
	return nil
}
