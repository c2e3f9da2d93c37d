// SPDX-License-Identifier: MIT

package phase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func envFor(phase int, status model.PhaseStatus) model.EventEnvelope {
	return model.EventEnvelope{
		Source:     model.EventSource,
		DetailType: model.DetailPhaseCompleted,
		Detail: model.PhaseEvent{
			Phase:     phase,
			Status:    status,
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestMemoryBusFanOut(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	s1, err := bus.Subscribe(ctx, TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = s1.Close() }()
	s2, err := bus.Subscribe(ctx, TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	require.NoError(t, bus.Publish(ctx, TopicPhaseCompleted, envFor(1, model.PhaseSuccess)))

	for _, sub := range []Subscriber{s1, s2} {
		select {
		case env := <-sub.C():
			assert.Equal(t, 1, env.Detail.Phase)
		case <-time.After(time.Second):
			t.Fatal("fan-out delivery timed out")
		}
	}
}

func TestMemoryBusZeroSubscribersIsFine(t *testing.T) {
	bus := NewMemoryBus()
	// A stage does not know (or care) whether anyone listens.
	require.NoError(t, bus.Publish(context.Background(), TopicTradingSignal, envFor(2, model.PhaseSuccess)))
}

func TestMemoryBusTopicIsolation(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sig, err := bus.Subscribe(ctx, TopicTradingSignal)
	require.NoError(t, err)
	defer func() { _ = sig.Close() }()

	require.NoError(t, bus.Publish(ctx, TopicPhaseCompleted, envFor(1, model.PhaseSuccess)))
	select {
	case <-sig.C():
		t.Fatal("trading-signal subscriber must not see phase lifecycle events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusPublishDropsOnFullSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	// Fill the subscriber buffer without draining it.
	for i := 0; i < 64; i++ {
		require.NoError(t, bus.Publish(context.Background(), TopicPhaseCompleted, envFor(i, model.PhaseSuccess)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = bus.Publish(ctx, TopicPhaseCompleted, envFor(99, model.PhaseSuccess))
	require.Error(t, err, "publish past a stuck subscriber must drop, not hang forever")
}

func TestMemoryBusCloseReleasesBlockedPublisher(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)

	// Fill the buffer so the next publish blocks on the stuck subscriber.
	for i := 0; i < 64; i++ {
		require.NoError(t, bus.Publish(context.Background(), TopicPhaseCompleted, envFor(i, model.PhaseSuccess)))
	}

	published := make(chan error, 1)
	go func() {
		published <- bus.Publish(context.Background(), TopicPhaseCompleted, envFor(99, model.PhaseSuccess))
	}()

	// Detaching while a publisher is blocked must unblock it, not panic it.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sub.Close())

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after subscriber closed")
	}
}

func TestMemoryBusCloseDetaches(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicPhaseCompleted)
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	_, open := <-sub.C()
	assert.False(t, open, "channel must be closed after Close")

	// Publishing after close must not block or panic.
	require.NoError(t, bus.Publish(context.Background(), TopicPhaseCompleted, envFor(1, model.PhaseSuccess)))
}
