// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindingStores(t *testing.T) map[string]BindingStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]BindingStore{
		"redis":  NewRedisBindingStore(client, "test:jobs"),
		"memory": NewMemoryBindingStore(),
	}
}

func TestEnsureBindingCreatesWhenMissing(t *testing.T) {
	for name, store := range bindingStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			action, err := EnsureBinding(ctx, store, "backtest-workers", "test:jobs")
			require.NoError(t, err)
			assert.Equal(t, BindingActionCreated, action)

			b, err := store.Get(ctx, "backtest-workers")
			require.NoError(t, err)
			assert.Equal(t, BindingEnabled, b.State)
			assert.Equal(t, "test:jobs", b.QueueKey)
		})
	}
}

func TestEnsureBindingIsIdempotent(t *testing.T) {
	for name, store := range bindingStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := EnsureBinding(ctx, store, "backtest-workers", "test:jobs")
			require.NoError(t, err)

			action, err := EnsureBinding(ctx, store, "backtest-workers", "test:jobs")
			require.NoError(t, err)
			assert.Equal(t, BindingActionNone, action)
		})
	}
}

func TestEnsureBindingReenablesDisabled(t *testing.T) {
	for name, store := range bindingStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := EnsureBinding(ctx, store, "backtest-workers", "test:jobs")
			require.NoError(t, err)

			// Operator paused consumption.
			b, err := store.Get(ctx, "backtest-workers")
			require.NoError(t, err)
			b.State = BindingDisabled
			require.NoError(t, store.Put(ctx, b))

			action, err := EnsureBinding(ctx, store, "backtest-workers", "test:jobs")
			require.NoError(t, err)
			assert.Equal(t, BindingActionEnabled, action)

			b, err = store.Get(ctx, "backtest-workers")
			require.NoError(t, err)
			assert.Equal(t, BindingEnabled, b.State)
		})
	}
}

func TestBindingStoreMissingRecord(t *testing.T) {
	for name, store := range bindingStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrBindingNotFound)
		})
	}
}
