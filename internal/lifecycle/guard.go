// SPDX-License-Identifier: MIT

package lifecycle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/notify"
)

// Decision is the closed outcome set of one trigger evaluation. Callers must
// branch on all three; none of them is an error.
type Decision string

const (
	DecisionStarted   Decision = "started"
	DecisionSkipped   Decision = "skipped"
	DecisionEscalated Decision = "escalated"
)

// ResultBody is the structured body of a guard result.
type ResultBody struct {
	Message       string              `json:"message,omitempty"`
	Error         string              `json:"error,omitempty"`
	InstanceID    string              `json:"instance_id"`
	PreviousState model.InstanceState `json:"previous_state,omitempty"`
	ExecutionID   string              `json:"execution_id"`
}

// RunResult is the HTTP-style envelope returned for every trigger.
type RunResult struct {
	Decision   Decision   `json:"decision"`
	StatusCode int        `json:"statusCode"`
	Body       ResultBody `json:"body"`
}

// Guard wraps a Controller with the duplicate-run check. It is stateless per
// invocation: safe to run concurrently for independent triggers because the
// instance-state query is the single source of truth and Start is idempotent
// at the resource layer.
type Guard struct {
	controller Controller
	notifier   notify.Notifier
	logger     zerolog.Logger
}

// NewGuard wires the guard. notifier should usually be wrapped in
// notify.NewDamped so skip notices cannot spam the channel.
func NewGuard(controller Controller, notifier notify.Notifier) *Guard {
	return &Guard{
		controller: controller,
		notifier:   notifier,
		logger:     log.WithComponent("guard"),
	}
}

// RequestRun evaluates one trigger. The returned error is non-nil only for
// hard failures (invalid trigger, transient infra error); skipped and
// escalated are normal results.
//
// The guard observes and issues transitions, it never assumes one happened:
// "started" means the start call was accepted, not that the instance booted.
func (g *Guard) RequestRun(ctx context.Context, trigger model.Trigger) (RunResult, error) {
	executionID := uuid.New().String()
	instanceID := g.controller.InstanceID()
	logger := g.logger.With().
		Str("execution_id", executionID).
		Str("schedule", trigger.ScheduleName).
		Str("pipeline_type", trigger.PipelineType).
		Logger()

	if err := trigger.Validate(); err != nil {
		return RunResult{
			Decision:   DecisionEscalated,
			StatusCode: http.StatusBadRequest,
			Body:       ResultBody{Error: err.Error(), InstanceID: instanceID, ExecutionID: executionID},
		}, err
	}

	// Single uncached describe. Staleness here would cause double starts.
	state, err := g.controller.Describe(ctx)
	if err != nil {
		guardFailures.WithLabelValues("describe").Inc()
		logger.Error().Err(err).Msg("instance state query failed")
		g.notifyHigh(ctx, instanceID, "instance state query failed", err.Error(), "failed")
		return RunResult{
			Decision:   DecisionEscalated,
			StatusCode: http.StatusInternalServerError,
			Body:       ResultBody{Error: fmt.Sprintf("describe failed: %v", err), InstanceID: instanceID, ExecutionID: executionID},
		}, fmt.Errorf("request run: %w", err)
	}

	switch state {
	case model.StateRunning, model.StateStopping:
		// A run is active (or winding down and will settle to stopped).
		// Not an error: the next scheduled trigger is the retry. No
		// deferred retry is queued; a missed window stays missed.
		guardDecisions.WithLabelValues(string(DecisionSkipped)).Inc()
		logger.Info().Str("state", string(state)).Msg("instance busy, trigger skipped")
		g.notifySkip(ctx, instanceID, trigger, state)
		return RunResult{
			Decision:   DecisionSkipped,
			StatusCode: http.StatusOK,
			Body: ResultBody{
				Message:       "pipeline already in progress, trigger skipped",
				InstanceID:    instanceID,
				PreviousState: state,
				ExecutionID:   executionID,
			},
		}, nil

	case model.StateStopped:
		if err := g.controller.Start(ctx); err != nil {
			guardFailures.WithLabelValues("start").Inc()
			logger.Error().Err(err).Msg("instance start failed")
			g.notifyHigh(ctx, instanceID, "instance start failed", err.Error(), "failed")
			return RunResult{
				Decision:   DecisionEscalated,
				StatusCode: http.StatusInternalServerError,
				Body:       ResultBody{Error: fmt.Sprintf("start failed: %v", err), InstanceID: instanceID, PreviousState: state, ExecutionID: executionID},
			}, fmt.Errorf("request run: %w", err)
		}
		startRequests.Inc()
		guardDecisions.WithLabelValues(string(DecisionStarted)).Inc()
		logger.Info().Msg("instance start accepted")
		return RunResult{
			Decision:   DecisionStarted,
			StatusCode: http.StatusOK,
			Body: ResultBody{
				Message:       "instance start accepted",
				InstanceID:    instanceID,
				PreviousState: state,
				ExecutionID:   executionID,
			},
		}, nil

	default:
		// pending, terminated, unknown: never auto-correct a state we do
		// not understand. Escalate and stand down.
		guardDecisions.WithLabelValues(string(DecisionEscalated)).Inc()
		logger.Error().Str("state", string(state)).Msg("instance in anomalous state, escalating")
		g.notifyHigh(ctx, instanceID, "instance in anomalous state",
			fmt.Sprintf("observed state %q for schedule %s", state, trigger.ScheduleName), "escalated")
		return RunResult{
			Decision:   DecisionEscalated,
			StatusCode: http.StatusInternalServerError,
			Body: ResultBody{
				Error:         fmt.Sprintf("anomalous instance state %q", state),
				InstanceID:    instanceID,
				PreviousState: state,
				ExecutionID:   executionID,
			},
		}, nil
	}
}

func (g *Guard) notifySkip(ctx context.Context, instanceID string, trigger model.Trigger, state model.InstanceState) {
	n := notify.New(notify.SeverityInfo,
		fmt.Sprintf("trigger skipped: %s", trigger.ScheduleName),
		notify.Body{
			EventType:  "duplicate_trigger",
			InstanceID: instanceID,
			Reason:     fmt.Sprintf("instance %s", state),
			Status:     string(DecisionSkipped),
		})
	if err := g.notifier.Publish(ctx, n); err != nil {
		g.logger.Warn().Err(err).Msg("skip notification failed")
	}
}

func (g *Guard) notifyHigh(ctx context.Context, instanceID, subject, reason, status string) {
	n := notify.New(notify.SeverityHigh, subject, notify.Body{
		EventType:  "lifecycle_alert",
		InstanceID: instanceID,
		Reason:     reason,
		Status:     status,
	})
	if err := g.notifier.Publish(ctx, n); err != nil {
		g.logger.Warn().Err(err).Msg("alert notification failed")
	}
}
