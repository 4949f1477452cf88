package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultRequestTimeout      = 10 * time.Second
	defaultRegistrationLockTTL = 30 * time.Second
	lockRetryInterval          = 10 * time.Millisecond
)

// MemoryRegistrationLocker is the default in-process locker. Hosts running
// multiple replicas should supply a distributed implementation instead.
type MemoryRegistrationLocker struct {
	mu      sync.Mutex
	locks   map[string]memoryLock
	lastGen uint64
	nowFn   func() time.Time
}

// memoryLock tags each holder with a generation so a handle whose TTL
// expired cannot release a lock the next caller has since reclaimed.
type memoryLock struct {
	until time.Time
	gen   uint64
}

func NewMemoryRegistrationLocker() *MemoryRegistrationLocker {
	return &MemoryRegistrationLocker{
		locks: make(map[string]memoryLock),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// Acquire blocks until the per-provider lock is free or ctx expires.
// Serializing callers instead of rejecting them lets a losing Register
// attempt observe the winner's registration and reuse it.
func (l *MemoryRegistrationLocker) Acquire(ctx context.Context, providerCode string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: registration locker is not configured")
	}
	providerCode = strings.TrimSpace(providerCode)
	if providerCode == "" {
		return nil, fmt.Errorf("core: provider code is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRegistrationLockTTL
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		now := l.nowFn()
		l.mu.Lock()
		current, held := l.locks[providerCode]
		if !held || !now.Before(current.until) {
			l.lastGen++
			gen := l.lastGen
			l.locks[providerCode] = memoryLock{until: now.Add(ttl), gen: gen}
			l.mu.Unlock()
			return &memoryLockHandle{locker: l, providerCode: providerCode, gen: gen}, nil
		}
		l.mu.Unlock()

		if err := waitWithContext(ctx, lockRetryInterval); err != nil {
			return nil, fmt.Errorf("core: registration lock already held for provider %q: %w", providerCode, err)
		}
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type memoryLockHandle struct {
	locker       *MemoryRegistrationLocker
	providerCode string
	gen          uint64
	once         sync.Once
}

// Unlock releases the lock only while this handle still owns it. After the
// TTL lapses and another caller reclaims the provider, a late Unlock from
// the stale handle is a no-op.
func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		if current, held := h.locker.locks[h.providerCode]; held && current.gen == h.gen {
			delete(h.locker.locks, h.providerCode)
		}
		h.locker.mu.Unlock()
	})
	return nil
}

