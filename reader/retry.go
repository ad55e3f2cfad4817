package reader

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy defines how transient provider failures are retried.
type RetryPolicy struct {
	MaxRetries int
	// BaseDelay is the unit for linear (429) backoff and the starting point
	// for exponential (503, timeout) backoff.
	BaseDelay time.Duration
	// MaxBackoff caps exponential backoff growth.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the retry policy used against hosted providers.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxBackoff: 60 * time.Second,
	}
}

// backoffFor decides whether err warrants another attempt and how long to
// wait before it. attempt is zero-based (the attempt that just failed).
//
// HTTP 429 backs off linearly; HTTP 503 and timeouts back off exponentially
// capped at MaxBackoff. Configuration errors and content-unavailable errors
// are never retried here (the single degraded proxy-off retry for 422 is
// handled by the client, not by blind repetition).
func (p RetryPolicy) backoffFor(err error, attempt int) (time.Duration, bool) {
	if err == nil || errors.Is(err, ErrConfiguration) || errors.Is(err, context.Canceled) {
		return 0, false
	}

	var rl *RateLimitedError
	if errors.As(err, &rl) {
		delay := p.BaseDelay * time.Duration(attempt+1)
		if rl.RetryAfter > delay {
			delay = rl.RetryAfter
		}
		return delay, true
	}

	var su *ServiceUnavailableError
	if errors.As(err, &su) || isTimeout(err) {
		delay := p.BaseDelay << uint(attempt)
		if delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
		return delay, true
	}

	return 0, false
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
