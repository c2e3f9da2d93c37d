// SPDX-License-Identifier: MIT

package worker

import (
	"context"

	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/phase"
)

// AnnouncingProcessor wraps a Processor so every job doubles as one pipeline
// phase: success and failure are announced on the bus, failure with the error
// payload before it propagates to the queue's retry machinery.
type AnnouncingProcessor struct {
	inner     Processor
	announcer *phase.Announcer
	phase     int
}

func NewAnnouncingProcessor(inner Processor, a *phase.Announcer, phaseOrdinal int) *AnnouncingProcessor {
	return &AnnouncingProcessor{inner: inner, announcer: a, phase: phaseOrdinal}
}

func (p *AnnouncingProcessor) Process(ctx context.Context, job model.Job) error {
	return phase.RunPhase(ctx, p.announcer, p.phase, map[string]string{
		"job_id":   job.JobID,
		"job_type": job.JobType,
	}, func(ctx context.Context) error {
		return p.inner.Process(ctx, job)
	})
}

var _ Processor = (*AnnouncingProcessor)(nil)
