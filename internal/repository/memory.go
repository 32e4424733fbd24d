package repository

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/domain"
)

type memoryLock struct {
	sem  chan struct{}
	refs int
}

// MemorySlotLocker serializes holders of the same key within one process.
// The ttl is ignored: holders always release.
type MemorySlotLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

func NewMemorySlotLocker() *MemorySlotLocker {
	return &MemorySlotLocker{locks: make(map[string]*memoryLock)}
}

func (l *MemorySlotLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &memoryLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, lock)
		return nil, domain.ErrSlotBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.sem
			l.unref(key, lock)
		})
	}, nil
}

func (l *MemorySlotLocker) unref(key string, lock *memoryLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *MemorySlotLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
