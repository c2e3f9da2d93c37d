// SPDX-License-Identifier: MIT

// Package lifecycle drives the run-state of the single compute instance the
// pipeline executes on, and hosts the duplicate-run guard that turns
// scheduler triggers into start decisions.
package lifecycle

import (
	"context"
	"errors"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// ErrNotFound is returned when the provider does not know the instance.
var ErrNotFound = errors.New("instance not found")

// Controller queries and mutates the run-state of one named compute
// instance. Calls are synchronous round-trips with the caller's context
// deadline; implementations never retry internally. The next scheduled
// trigger is the retry mechanism.
//
// Start and Stop are accepted-requests, not completed transitions: a caller
// must not assume a transition happened until a later Describe confirms it.
type Controller interface {
	// InstanceID returns the identity of the managed instance.
	InstanceID() string
	// Describe returns the currently observed state, uncached.
	Describe(ctx context.Context) (model.InstanceState, error)
	// Start requests the instance to boot. Idempotent at the resource
	// layer: starting an already-starting instance is a no-op.
	Start(ctx context.Context) error
	// Stop requests a graceful stop (never forced, never hibernate).
	Stop(ctx context.Context) error
}
