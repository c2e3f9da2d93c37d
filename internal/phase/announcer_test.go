// SPDX-License-Identifier: MIT

package phase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

func collect(t *testing.T, sub Subscriber, n int) []model.EventEnvelope {
	t.Helper()
	out := make([]model.EventEnvelope, 0, n)
	for len(out) < n {
		select {
		case env := <-sub.C():
			out = append(out, env)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d events, got %d", n, len(out))
		}
	}
	return out
}

func TestAnnounceSuccess(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	a := NewAnnouncer(bus, time.Second)
	a.Announce(context.Background(), 3, model.PhaseSuccess, map[string]string{"tickers": "42"})

	events := collect(t, sub, 1)
	assert.Equal(t, model.EventSource, events[0].Source)
	assert.Equal(t, model.DetailPhaseCompleted, events[0].DetailType)
	assert.Equal(t, 3, events[0].Detail.Phase)
	assert.Equal(t, model.PhaseSuccess, events[0].Detail.Status)
	assert.Equal(t, "42", events[0].Detail.Data["tickers"])
	assert.False(t, events[0].Detail.Timestamp.IsZero())
}

func TestAnnounceSignalUsesSignalChannel(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicTradingSignal)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	a := NewAnnouncer(bus, time.Second)
	a.AnnounceSignal(context.Background(), 4, map[string]string{"symbol": "BTC-KRW", "action": "buy"})

	events := collect(t, sub, 1)
	assert.Equal(t, model.DetailTradingSignal, events[0].DetailType)
	assert.Equal(t, "buy", events[0].Detail.Data["action"])
}

func TestRunPhaseAnnouncesFailureBeforePropagating(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	a := NewAnnouncer(bus, time.Second)
	boom := errors.New("stage exploded")
	err = RunPhase(context.Background(), a, 2, map[string]string{"stage": "scanner"}, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	events := collect(t, sub, 1)
	assert.Equal(t, model.PhaseFailure, events[0].Detail.Status)
	assert.Equal(t, "stage exploded", events[0].Detail.Data["error"])
	assert.Equal(t, "scanner", events[0].Detail.Data["stage"])
}

func TestRunPhaseAnnouncesGenuineFailureEvenWhenContextCanceled(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	a := NewAnnouncer(bus, time.Second)
	boom := errors.New("stage exploded")
	ctx, cancel := context.WithCancel(context.Background())
	err = RunPhase(ctx, a, 5, nil, func(context.Context) error {
		cancel()
		return boom
	})
	require.ErrorIs(t, err, boom)

	events := collect(t, sub, 1)
	assert.Equal(t, model.PhaseFailure, events[0].Detail.Status)
}

func TestRunPhaseSkipsAnnouncementWhenInterrupted(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	a := NewAnnouncer(bus, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	err = RunPhase(ctx, a, 5, nil, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)

	// A graceful shutdown is not a phase failure; nothing should be paged.
	select {
	case env := <-sub.C():
		t.Fatalf("unexpected announcement for interrupted stage: %+v", env.Detail)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunPhaseSuccess(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	a := NewAnnouncer(bus, time.Second)
	require.NoError(t, RunPhase(context.Background(), a, 1, nil, func(context.Context) error { return nil }))

	events := collect(t, sub, 1)
	assert.Equal(t, model.PhaseSuccess, events[0].Detail.Status)
}

func TestAnnouncePublishFailureDoesNotPanicOrBlock(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	// Saturate the subscriber so the next publish drops.
	a := NewAnnouncer(bus, 20*time.Millisecond)
	for i := 0; i < 70; i++ {
		a.Announce(context.Background(), i, model.PhaseSuccess, nil)
	}
	// Reaching here without deadlock is the assertion.
}
