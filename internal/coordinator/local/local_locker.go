package local

import (
	"context"
	"fmt"
	"sync"

	coordinator "loanguard/internal/coordinator/iface"
)

// locker is an in-process Locker used when ZooKeeper is not configured.
type locker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocker creates an in-process locker.
func NewLocker() coordinator.Locker {
	return &locker{slots: make(map[string]chan struct{})}
}

func (l *locker) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[name] = ch
	}
	return ch
}

func (l *locker) Lock(ctx context.Context, name string) (coordinator.UnlockFunc, error) {
	ch := l.slot(name)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() error {
			once.Do(func() { <-ch })
			return nil
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, ctx.Err())
	}
}

func (l *locker) Close() error {
	return nil
}
