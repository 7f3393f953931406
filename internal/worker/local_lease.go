package worker

import (
	"context"
	"sync"
	"time"
)

// LocalLease serialises runs inside one process. It is the fallback when no shared
// store is configured; ttl is ignored because the holder cannot disappear.
type LocalLease struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLease() *LocalLease {
	return &LocalLease{held: map[string]struct{}{}}
}

func (l *LocalLease) Acquire(ctx context.Context, key string, _ time.Duration) (context.Context, func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return nil, nil, false, nil
	}
	l.held[key] = struct{}{}

	leaseCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}
	return leaseCtx, release, true, nil
}
