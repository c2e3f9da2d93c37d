// SPDX-License-Identifier: MIT

package phase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	busDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_bus_dropped_total",
		Help: "In-memory bus message drops by topic and reason",
	}, []string{"topic", "reason"})

	announcementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_phase_announcements_total",
		Help: "Phase-chain announcements by detail type and status",
	}, []string{"detail_type", "status"})

	announceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "makenaide_phase_announce_errors_total",
		Help: "Announcements that failed to publish (best-effort, not retried)",
	})
)
