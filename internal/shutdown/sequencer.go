// SPDX-License-Identifier: MIT

// Package shutdown runs the ordered stop sequence for the compute instance:
// checkpoint local state, sync artifacts to durable storage, notify, then
// stop. Integrity steps come before the stop request so a failure leaves the
// instance (and its state) running for manual inspection instead of losing
// data.
package shutdown

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/artifact"
	"github.com/jsj9346/makenaide-sub006/internal/lifecycle"
	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/notify"
	"github.com/jsj9346/makenaide-sub006/internal/store"
)

// Outcome of a shutdown sequence.
type Outcome string

const (
	// OutcomeCompleted means every integrity step succeeded and the stop
	// request was accepted by the lifecycle provider.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAborted means an integrity step failed; the instance was left
	// running on purpose.
	OutcomeAborted Outcome = "aborted"
)

// StepResult records one executed step.
type StepResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Result is the full sequence report. Steps holds only the steps that ran;
// an aborted sequence stops at the failed step.
type Result struct {
	Outcome Outcome
	Steps   []StepResult
}

// Sequencer executes the ordered shutdown sequence.
type Sequencer struct {
	store      store.Store
	syncer     artifact.Syncer
	notifier   notify.Notifier
	controller lifecycle.Controller

	checkpointDir string
	artifactDir   string
	remotePrefix  string

	logger zerolog.Logger
}

// NewSequencer wires the sequence dependencies. Checkpoints are written under
// checkpointDir, artifactDir is the tree uploaded to durable storage, and
// remotePrefix namespaces the upload (typically the execution ID).
func NewSequencer(st store.Store, syn artifact.Syncer, n notify.Notifier, ctl lifecycle.Controller, checkpointDir, artifactDir, remotePrefix string) *Sequencer {
	return &Sequencer{
		store:         st,
		syncer:        syn,
		notifier:      n,
		controller:    ctl,
		checkpointDir: checkpointDir,
		artifactDir:   artifactDir,
		remotePrefix:  remotePrefix,
		logger:        log.WithComponent("shutdown"),
	}
}

// Execute runs the sequence. A checkpoint or sync failure aborts before the
// stop request and raises one high-severity notification; a notification
// failure is logged and does not block the stop.
func (s *Sequencer) Execute(ctx context.Context, sc model.ShutdownContext) Result {
	var res Result

	if err := s.runStep(ctx, &res, "checkpoint", func(ctx context.Context) error {
		path, err := store.WriteCheckpoint(ctx, s.store, s.checkpointDir)
		if err != nil {
			return err
		}
		s.logger.Info().Str("path", path).Msg("checkpoint written")
		return nil
	}); err != nil {
		return s.abort(ctx, res, "checkpoint", err)
	}

	if err := s.runStep(ctx, &res, "artifact_sync", func(ctx context.Context) error {
		out, err := s.syncer.SyncDir(ctx, s.artifactDir, s.remotePrefix)
		if err != nil {
			return err
		}
		s.logger.Info().Int("uploaded", out.Uploaded).Int64("bytes", out.Bytes).Msg("artifacts synced")
		return nil
	}); err != nil {
		return s.abort(ctx, res, "artifact_sync", err)
	}

	// Best effort: a lost notification must not keep the instance running.
	if err := s.runStep(ctx, &res, "notify", func(ctx context.Context) error {
		return s.notifier.Publish(ctx, notify.New(notify.SeverityInfo, "makenaide shutdown", notify.Body{
			EventType:  "shutdown",
			InstanceID: s.controller.InstanceID(),
			Reason:     sc.Reason,
			Statistics: sc.Stats,
			Status:     string(OutcomeCompleted),
		}))
	}); err != nil {
		s.logger.Warn().Err(err).Msg("shutdown notification failed, continuing")
	}

	if err := s.runStep(ctx, &res, "stop", func(ctx context.Context) error {
		return s.controller.Stop(ctx)
	}); err != nil {
		return s.abort(ctx, res, "stop", err)
	}

	res.Outcome = OutcomeCompleted
	s.logger.Info().Str("reason", sc.Reason).Msg("shutdown sequence completed")
	return res
}

func (s *Sequencer) runStep(ctx context.Context, res *Result, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	res.Steps = append(res.Steps, StepResult{Name: name, Err: err, Duration: d})
	stepDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		stepFailuresTotal.WithLabelValues(name).Inc()
	}
	return err
}

func (s *Sequencer) abort(ctx context.Context, res Result, step string, cause error) Result {
	res.Outcome = OutcomeAborted
	s.logger.Error().Err(cause).Str("step", step).Msg("shutdown sequence aborted, instance left running")
	// The surrounding context may already be tearing down.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.notifier.Publish(nctx, notify.New(notify.SeverityHigh, "makenaide shutdown aborted", notify.Body{
		EventType:  "shutdown",
		InstanceID: s.controller.InstanceID(),
		Reason:     fmt.Sprintf("step %s failed: %v", step, cause),
		Status:     string(OutcomeAborted),
	})); err != nil {
		s.logger.Error().Err(err).Msg("abort notification failed")
	}
	return res
}
