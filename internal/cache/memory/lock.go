package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// LockManager is an in-process domain.LockManager. Locks expire after their
// ttl even when never released.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]uint64
	seq   uint64
	timer map[string]*time.Timer
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]uint64), timer: make(map[string]*time.Timer)}
}

func (l *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, domain.ErrLockHeld
	}
	l.seq++
	token := l.seq
	l.held[key] = token
	if ttl > 0 {
		l.timer[key] = time.AfterFunc(ttl, func() { l.release(key, token) })
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(key, token) }) }, nil
}

func (l *LockManager) release(key string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return
	}
	delete(l.held, key)
	if t, ok := l.timer[key]; ok {
		t.Stop()
		delete(l.timer, key)
	}
}

var _ domain.LockManager = (*LockManager)(nil)
