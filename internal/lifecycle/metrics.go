// SPDX-License-Identifier: MIT

package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	guardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_guard_decisions_total",
		Help: "Duplicate-run guard decisions by outcome",
	}, []string{"decision"})

	guardFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_guard_failures_total",
		Help: "Guard hard failures by lifecycle call",
	}, []string{"call"})

	startRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "makenaide_instance_start_requests_total",
		Help: "Start requests issued to the compute instance",
	})
)
