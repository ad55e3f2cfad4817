package reader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sentinel errors for conditions callers branch on.
var (
	// ErrConfiguration indicates missing or invalid provider credentials.
	// It is fatal: the client never retries a configuration error.
	ErrConfiguration = errors.New("reader: missing or invalid configuration")

	// ErrCircuitOpen indicates the provider's circuit breaker is open and
	// the call failed without any network I/O.
	ErrCircuitOpen = errors.New("reader: circuit breaker open")

	// ErrDomainSuppressed indicates direct fetching has been suspended for
	// a domain after repeated failures.
	ErrDomainSuppressed = errors.New("reader: direct fetch suppressed for domain")
)

// RateLimitedError reports an HTTP 429 from a provider. RetryAfter is the
// delay the provider requested, or zero if it gave none.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %v)", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// ServiceUnavailableError reports an HTTP 5xx from a provider.
type ServiceUnavailableError struct {
	Provider   string
	StatusCode int
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s: service unavailable (HTTP %d)", e.Provider, e.StatusCode)
}

// ContentUnavailableError reports an HTTP 422 or an empty body: the provider
// answered but could not produce usable content for the page.
type ContentUnavailableError struct {
	Provider   string
	StatusCode int
	Reason     string
}

func (e *ContentUnavailableError) Error() string {
	return fmt.Sprintf("%s: content unavailable (HTTP %d): %s", e.Provider, e.StatusCode, e.Reason)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsServiceUnavailable reports whether err is (or wraps) a
// ServiceUnavailableError or the circuit-open sentinel.
func IsServiceUnavailable(err error) bool {
	var su *ServiceUnavailableError
	return errors.As(err, &su) || errors.Is(err, ErrCircuitOpen)
}

// IsContentUnavailable reports whether err is (or wraps) a
// ContentUnavailableError.
func IsContentUnavailable(err error) bool {
	var cu *ContentUnavailableError
	return errors.As(err, &cu)
}

// isTimeout reports whether err represents a network timeout or context
// deadline. Timeouts count as provider failures for breaker accounting.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
