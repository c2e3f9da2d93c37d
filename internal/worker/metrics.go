// SPDX-License-Identifier: MIT

package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_worker_jobs_processed_total",
		Help: "Jobs processed by outcome",
	}, []string{"job_type", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "makenaide_worker_job_duration_seconds",
		Help:    "Job processing duration",
		Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
	}, []string{"job_type"})

	bindingActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_worker_binding_actions_total",
		Help: "Queue binding reconciliation outcomes",
	}, []string{"action"})
)
