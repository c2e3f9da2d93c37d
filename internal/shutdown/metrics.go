// SPDX-License-Identifier: MIT

package shutdown

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "makenaide_shutdown_step_duration_seconds",
		Help:    "Duration of each shutdown sequence step",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	stepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_shutdown_step_failures_total",
		Help: "Shutdown sequence steps that failed",
	}, []string{"step"})
)
