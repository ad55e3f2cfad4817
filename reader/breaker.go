package reader

import (
	"sync"
	"time"
)

// circuitBreaker suspends calls to a failing provider. It opens after
// threshold consecutive failures; while open, Allow fails immediately
// without network I/O. After the cooldown elapses the breaker optimistically
// closes and the next call is the live test: a renewed failure re-opens it
// immediately, any success zeroes the counter.
type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openedAt  time.Time // zero while closed
	now       func() time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. Returns ErrCircuitOpen while the
// breaker is open and inside the cooldown window.
func (cb *circuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.openedAt.IsZero() {
		return nil
	}

	if cb.now().Sub(cb.openedAt) < cb.cooldown {
		return ErrCircuitOpen
	}

	// Optimistic reset: the next call is the live test. One more failure
	// re-opens the breaker immediately.
	cb.openedAt = time.Time{}
	cb.failures = cb.threshold - 1
	return nil
}

// RecordSuccess zeroes the consecutive-failure counter and closes the
// breaker.
func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.mu.Unlock()
}

// RecordFailure increments the consecutive-failure counter, opening the
// breaker once the threshold is reached. Returns true if this failure opened
// the breaker.
func (cb *circuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.threshold && cb.openedAt.IsZero() {
		cb.openedAt = cb.now()
		return true
	}
	return false
}
