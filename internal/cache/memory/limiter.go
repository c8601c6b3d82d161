package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// RateLimiter is an in-process domain.RateLimiter holding one token bucket
// per key. A bucket refills limit tokens per window with a burst of limit.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	now      func() time.Time
}

type entry struct {
	lim      *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

// NewRateLimiter creates an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*entry), now: time.Now}
}

// Allow consumes one token from key's bucket if available.
func (r *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	now := r.now()

	r.mu.Lock()
	e, ok := r.limiters[key]
	if !ok || e.limit != limit || e.window != window {
		e = &entry{
			lim:    rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:  limit,
			window: window,
		}
		r.limiters[key] = e
	}
	e.lastSeen = now
	r.mu.Unlock()

	return e.lim.AllowN(now, 1), nil
}

// Prune drops buckets idle for longer than maxIdle and returns how many
// were removed.
func (r *RateLimiter) Prune(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(r.limiters, k)
			n++
		}
	}
	return n
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
