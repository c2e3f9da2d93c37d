// SPDX-License-Identifier: MIT

package lifecycle

import (
	"context"
	"sync"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// MemoryController is an in-process Controller for tests. State transitions
// are immediate unless the test drives them manually via SetState.
type MemoryController struct {
	mu    sync.Mutex
	id    string
	state model.InstanceState

	starts int
	stops  int

	// Error hooks for failure-path tests.
	DescribeErr error
	StartErr    error
	StopErr     error
}

func NewMemoryController(id string, initial model.InstanceState) *MemoryController {
	return &MemoryController{id: id, state: initial}
}

func (m *MemoryController) InstanceID() string { return m.id }

func (m *MemoryController) Describe(_ context.Context) (model.InstanceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DescribeErr != nil {
		return model.StateUnknown, m.DescribeErr
	}
	return m.state, nil
}

func (m *MemoryController) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.starts++
	// Second start on an already-starting instance is a no-op.
	if m.state == model.StateStopped {
		m.state = model.StatePending
	}
	return nil
}

func (m *MemoryController) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StopErr != nil {
		return m.StopErr
	}
	m.stops++
	if m.state == model.StateRunning {
		m.state = model.StateStopping
	}
	return nil
}

// SetState overrides the observed state (simulates external transitions such
// as boot completion).
func (m *MemoryController) SetState(s model.InstanceState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// StartCalls reports how many Start requests were issued.
func (m *MemoryController) StartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// StopCalls reports how many Stop requests were issued.
func (m *MemoryController) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

var _ Controller = (*MemoryController)(nil)
