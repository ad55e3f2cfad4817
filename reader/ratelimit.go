package reader

import (
	"context"
	"sync"
	"time"
)

// rateLimiter enforces a minimum inter-request delay and an optional
// in-flight concurrency cap for a single provider. Callers are admitted in
// strict FIFO arrival order: each Acquire chains on the previous caller's
// gate channel, so concurrent callers from multiple workers serialize into
// provider-safe pacing.
type rateLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	cap      int // 0 means no concurrency cap
	last     time.Time
	inFlight int
	tail     chan struct{}
}

// pollInterval is how often an admitted-but-capped caller re-checks the
// in-flight count.
const pollInterval = 50 * time.Millisecond

func newRateLimiter(minDelay time.Duration, concurrencyCap int) *rateLimiter {
	tail := make(chan struct{})
	close(tail)
	return &rateLimiter{
		minDelay: minDelay,
		cap:      concurrencyCap,
		tail:     tail,
	}
}

// Acquire blocks until the caller is admitted. Admission order matches
// arrival order. Returns the context's error if it is cancelled while
// waiting; a cancelled caller leaves the queue without blocking successors.
func (rl *rateLimiter) Acquire(ctx context.Context) error {
	rl.mu.Lock()
	prev := rl.tail
	gate := make(chan struct{})
	rl.tail = gate
	rl.mu.Unlock()

	// Admit the successor once this caller is through (or gone).
	defer close(gate)

	select {
	case <-prev:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		rl.mu.Lock()
		wait := rl.minDelay - time.Since(rl.last)
		if wait <= 0 && (rl.cap == 0 || rl.inFlight < rl.cap) {
			rl.last = time.Now()
			rl.inFlight++
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		if wait <= 0 {
			// Below-cap slot not free yet; poll until one opens.
			wait = pollInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Release marks one in-flight request as finished.
func (rl *rateLimiter) Release() {
	rl.mu.Lock()
	if rl.inFlight > 0 {
		rl.inFlight--
	}
	rl.mu.Unlock()
}

// InFlight returns the current in-flight count.
func (rl *rateLimiter) InFlight() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.inFlight
}
