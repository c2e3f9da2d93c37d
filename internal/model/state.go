// SPDX-License-Identifier: MIT

// Package model holds the shared domain types of the orchestration core:
// instance lifecycle states, triggers, phase events, jobs and persisted
// record shapes. It is deliberately dependency-free.
package model

// InstanceState is the observed run-state of the compute instance. The core
// never creates or destroys the instance; it only starts and stops it.
type InstanceState string

const (
	StateStopped    InstanceState = "stopped"
	StatePending    InstanceState = "pending"
	StateRunning    InstanceState = "running"
	StateStopping   InstanceState = "stopping"
	StateTerminated InstanceState = "terminated"
	StateUnknown    InstanceState = "unknown"
)

// ParseInstanceState normalizes a provider-reported state string. Anything
// outside the known set maps to StateUnknown so the guard escalates instead
// of guessing.
func ParseInstanceState(s string) InstanceState {
	switch InstanceState(s) {
	case StateStopped, StatePending, StateRunning, StateStopping, StateTerminated:
		return InstanceState(s)
	default:
		return StateUnknown
	}
}
