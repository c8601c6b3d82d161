// Package memory provides in-process implementations of the cache-layer
// interfaces for single-instance runs without Redis.
package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

const subscriberBuffer = 128

type subscriber struct {
	pattern string
	ch      chan domain.Message
}

// SignalBus is an in-process domain.SignalBus. Delivery is non-blocking: a
// subscriber whose buffer is full misses the message.
type SignalBus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	dropped atomic.Int64
}

// NewSignalBus creates an empty bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[*subscriber]struct{})}
}

// Publish delivers payload to every subscription matching channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !Match(s.pattern, channel) {
			continue
		}
		msg := domain.Message{Channel: channel, Payload: append([]byte(nil), payload...)}
		select {
		case s.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a subscription for channel, which may be a glob
// pattern. The returned channel is closed when ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan domain.Message, error) {
	s := &subscriber{pattern: channel, ch: make(chan domain.Message, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}

// Dropped returns the number of messages lost to full subscriber buffers.
func (b *SignalBus) Dropped() int64 {
	return b.dropped.Load()
}

// Match reports whether channel matches a Redis-style glob pattern where
// '*' matches any run of characters and '?' exactly one.
func Match(pattern, channel string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == channel
	}
	p, c := 0, 0
	star, mark := -1, 0
	for c < len(channel) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == channel[c]):
			p++
			c++
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, c
			p++
		case star >= 0:
			p = star + 1
			mark++
			c = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

var _ domain.SignalBus = (*SignalBus)(nil)
