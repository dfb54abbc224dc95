package ratelimit

import "context"

// Semaphore caps the number of concurrent units of work process-wide.
// Excess callers block until a slot frees; this is the scanner's only
// backpressure mechanism, there is no queue behind it.
type Semaphore struct {
	slots chan struct{}
}

func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is available or the context is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}

// InFlight reports the number of currently held slots.
func (s *Semaphore) InFlight() int {
	return len(s.slots)
}
