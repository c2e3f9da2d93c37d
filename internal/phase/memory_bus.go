// SPDX-License-Identifier: MIT

package phase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// MemoryBus is an in-process pub/sub. It is not durable: a subscriber that
// falls behind past its buffer causes the publish to block until the context
// expires, at which point the message is dropped and counted.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub
	logger zerolog.Logger
}

const dropLogEvery = 100

var dropCount atomic.Uint64

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:   make(map[string][]*memSub),
		logger: log.WithComponent("bus"),
	}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, env model.EventEnvelope) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	subs := append([]*memSub(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, s := range subs {
		if !s.acquire() {
			// Detached since the snapshot; nothing to deliver.
			continue
		}
		err := s.send(ctx, env)
		s.release()
		if err != nil {
			reason := publishDropReason(err)
			busDropsTotal.WithLabelValues(topic, reason).Inc()
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				b.logger.Warn().
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, err)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (Subscriber, error) {
	s := &memSub{
		b:     b,
		topic: topic,
		ch:    make(chan model.EventEnvelope, 64),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	return s, nil
}

func (b *MemoryBus) detach(s *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lst := b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(b.subs, s.topic)
	} else {
		b.subs[s.topic] = out
	}
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan model.EventEnvelope
	done  chan struct{}

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// acquire registers an in-flight publisher; it fails once Close has started
// so no publisher can touch the channel afterwards.
func (s *memSub) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *memSub) release() { s.wg.Done() }

func (s *memSub) send(ctx context.Context, env model.EventEnvelope) error {
	select {
	case s.ch <- env:
		return nil
	case <-s.done:
		// Subscriber detached mid-send; the message is undeliverable but the
		// publish as a whole did not fail.
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memSub) C() <-chan model.EventEnvelope {
	return s.ch
}

// Close detaches the subscriber and closes its channel. Publishers blocked on
// a full buffer are released first; the channel is closed only after every
// in-flight send has returned.
func (s *memSub) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.b.detach(s)
	close(s.done)
	s.wg.Wait()
	close(s.ch)
	return nil
}

var _ Bus = (*MemoryBus)(nil)
