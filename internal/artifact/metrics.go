// SPDX-License-Identifier: MIT

package artifact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncedFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_artifact_synced_files_total",
		Help: "Files uploaded to durable artifact storage",
	}, []string{"backend"})

	syncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makenaide_artifact_sync_failures_total",
		Help: "Artifact sync passes that failed",
	}, []string{"backend"})
)
