// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
)

// BindingState of a queue-to-worker binding.
type BindingState string

const (
	BindingEnabled  BindingState = "enabled"
	BindingDisabled BindingState = "disabled"
)

// BindingAction reports what EnsureBinding had to do.
type BindingAction string

const (
	BindingActionNone    BindingAction = "none"
	BindingActionCreated BindingAction = "created"
	BindingActionEnabled BindingAction = "enabled"
)

// Binding is the persisted record tying a queue to a worker pool. Operators
// disable a binding to pause consumption without losing queued jobs.
type Binding struct {
	Name      string       `json:"name"`
	QueueKey  string       `json:"queue_key"`
	State     BindingState `json:"state"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BindingStore persists bindings.
type BindingStore interface {
	Get(ctx context.Context, name string) (Binding, error)
	Put(ctx context.Context, b Binding) error
}

// ErrBindingNotFound reports a missing binding record.
var ErrBindingNotFound = errors.New("binding not found")

// RedisBindingStore keeps bindings in a redis hash next to the queue keys.
type RedisBindingStore struct {
	client *redis.Client
	key    string
}

func NewRedisBindingStore(client *redis.Client, queueKey string) *RedisBindingStore {
	return &RedisBindingStore{client: client, key: queueKey + ":bindings"}
}

func (s *RedisBindingStore) Get(ctx context.Context, name string) (Binding, error) {
	raw, err := s.client.HGet(ctx, s.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return Binding{}, ErrBindingNotFound
	}
	if err != nil {
		return Binding{}, fmt.Errorf("get binding %s: %w", name, err)
	}
	var b Binding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Binding{}, fmt.Errorf("get binding %s: %w", name, err)
	}
	return b, nil
}

func (s *RedisBindingStore) Put(ctx context.Context, b Binding) error {
	buf, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("put binding %s: %w", b.Name, err)
	}
	if err := s.client.HSet(ctx, s.key, b.Name, buf).Err(); err != nil {
		return fmt.Errorf("put binding %s: %w", b.Name, err)
	}
	return nil
}

// MemoryBindingStore is an in-process BindingStore for tests.
type MemoryBindingStore struct {
	bindings map[string]Binding
}

func NewMemoryBindingStore() *MemoryBindingStore {
	return &MemoryBindingStore{bindings: make(map[string]Binding)}
}

func (s *MemoryBindingStore) Get(_ context.Context, name string) (Binding, error) {
	b, ok := s.bindings[name]
	if !ok {
		return Binding{}, ErrBindingNotFound
	}
	return b, nil
}

func (s *MemoryBindingStore) Put(_ context.Context, b Binding) error {
	s.bindings[b.Name] = b
	return nil
}

// EnsureBinding reconciles the binding toward enabled. Idempotent: an
// existing enabled binding is untouched, a disabled one is re-enabled, a
// missing one is created. Run at every worker startup.
func EnsureBinding(ctx context.Context, store BindingStore, name, queueKey string) (BindingAction, error) {
	logger := log.WithComponent("worker")

	b, err := store.Get(ctx, name)
	switch {
	case errors.Is(err, ErrBindingNotFound):
		if err := store.Put(ctx, Binding{
			Name:      name,
			QueueKey:  queueKey,
			State:     BindingEnabled,
			UpdatedAt: time.Now().UTC(),
		}); err != nil {
			return BindingActionNone, err
		}
		recordBinding(logger, name, BindingActionCreated)
		return BindingActionCreated, nil
	case err != nil:
		return BindingActionNone, err
	}

	if b.State == BindingEnabled {
		bindingActionsTotal.WithLabelValues(string(BindingActionNone)).Inc()
		return BindingActionNone, nil
	}

	b.State = BindingEnabled
	b.UpdatedAt = time.Now().UTC()
	if err := store.Put(ctx, b); err != nil {
		return BindingActionNone, err
	}
	recordBinding(logger, name, BindingActionEnabled)
	return BindingActionEnabled, nil
}

func recordBinding(logger zerolog.Logger, name string, action BindingAction) {
	bindingActionsTotal.WithLabelValues(string(action)).Inc()
	logger.Info().Str("binding", name).Str("action", string(action)).Msg("binding reconciled")
}
