package ratelimit

import (
	"sync"
	"time"
)

// SlotLimiter spaces outbound calls by a fixed interval. Each Consume call
// is assigned its own future time slot, so concurrent callers never burst
// together after sleeping the same wait: the next-slot pointer is advanced
// before the caller's wait elapses, and every later caller lands strictly
// after it.
type SlotLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	nextSlot time.Time
	now      func() time.Time // injectable for tests
}

func NewSlotLimiter(interval time.Duration) *SlotLimiter {
	return &SlotLimiter{
		interval: interval,
		now:      time.Now,
	}
}

// Consume reserves the next available slot and returns how long the caller
// must wait before proceeding. Slot assignment order is Consume invocation
// order; assigned slots are monotonically increasing per limiter.
func (l *SlotLimiter) Consume() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.nextSlot.Before(now) {
		l.nextSlot = now
	}
	wait := l.nextSlot.Sub(now)
	l.nextSlot = l.nextSlot.Add(l.interval)
	return wait
}

// Interval reports the configured slot spacing.
func (l *SlotLimiter) Interval() time.Duration {
	return l.interval
}
