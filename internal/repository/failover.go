package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"salonbook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSlotLocker prefers the primary (Redis) locker and switches to the
// fallback (memory) when the primary errors. It retries the primary once a
// minute.
type FailoverSlotLocker struct {
	primary   domain.SlotLocker
	fallback  domain.SlotLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSlotLocker(primary, fallback domain.SlotLocker, logger *zerolog.Logger) *FailoverSlotLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverSlotLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *FailoverSlotLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.usePrimary() {
		release, err := l.primary.Acquire(ctx, key, ttl)
		if err == nil {
			if l.isDown.CompareAndSwap(true, false) {
				l.logger.Info().Msg("Primary slot locker recovered")
			}
			return release, nil
		}
		if errors.Is(err, domain.ErrSlotBusy) {
			return nil, err
		}
		l.logger.Error().Err(err).Msg("Primary slot locker failed, falling back to memory")
		l.isDown.Store(true)
		l.lastCheck.Store(time.Now().UnixNano())
	}

	return l.fallback.Acquire(ctx, key, ttl)
}

func (l *FailoverSlotLocker) usePrimary() bool {
	if !l.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, l.lastCheck.Load())) > recoveryInterval
}

// Degraded reports whether the fallback is in use.
func (l *FailoverSlotLocker) Degraded() bool {
	return l.isDown.Load()
}
