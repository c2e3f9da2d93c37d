// SPDX-License-Identifier: MIT

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	claimedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_queue_claimed_total",
		Help: "Jobs claimed by workers",
	}, []string{"backend"})

	ackedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_queue_acked_total",
		Help: "Jobs acknowledged after successful processing",
	}, []string{"backend"})

	nackedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_queue_nacked_total",
		Help: "Jobs released back to the queue by reason",
	}, []string{"backend", "reason"})

	deadLetteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_queue_dead_lettered_total",
		Help: "Jobs routed to the dead-letter queue",
	}, []string{"backend"})

	expiredRequeuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_queue_expired_requeued_total",
		Help: "In-flight claims returned to pending after visibility expiry",
	}, []string{"backend"})
)
