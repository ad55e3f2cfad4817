package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ClientOptions configures the resilience wrappers around one provider.
type ClientOptions struct {
	// MinDelay is the minimum inter-request delay enforced by the FIFO rate
	// limiter. Default 500ms.
	MinDelay time.Duration
	// ConcurrencyCap limits in-flight requests to the provider. Zero means
	// no cap.
	ConcurrencyCap int
	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit. Default 3.
	BreakerThreshold int
	// BreakerCooldown is how long the circuit stays open. Default 60s.
	BreakerCooldown time.Duration
	// Retry controls backoff for transient failures.
	Retry RetryPolicy
	// Fallback, when non-nil, is tried after the primary provider's retries
	// exhaust (or while its circuit is open).
	Fallback Fetcher
	// Observer receives metrics events. May be nil.
	Observer Observer
}

// Client wraps a provider with rate limiting, circuit breaking,
// retry/backoff and an optional fallback fetcher. All breaker and limiter
// state is owned by the instance, so independent clients never interfere
// and tests can assert against injected fake providers.
type Client struct {
	provider Fetcher
	opts     ClientOptions
	limiter  *rateLimiter
	breaker  *circuitBreaker
}

// NewClient wraps provider with the resilience stack.
func NewClient(provider Fetcher, opts ClientOptions) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: no provider", ErrConfiguration)
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 500 * time.Millisecond
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = 3
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 60 * time.Second
	}
	if opts.Retry.BaseDelay <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Client{
		provider: provider,
		opts:     opts,
		limiter:  newRateLimiter(opts.MinDelay, opts.ConcurrencyCap),
		breaker:  newCircuitBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
	}, nil
}

// Name identifies the wrapped provider.
func (c *Client) Name() string { return c.provider.Name() }

// Fetch retrieves the page through the wrapped provider, falling back to the
// secondary fetcher once the primary's retries exhaust. A single Fetch call
// counts as one success or one failure for breaker accounting regardless of
// how many retry attempts it spent.
func (c *Client) Fetch(ctx context.Context, pageURL string, format Format) (*Result, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Release()

	result, err := c.fetchPrimary(ctx, pageURL, format)
	if err == nil {
		return result, nil
	}

	if c.opts.Fallback == nil {
		return nil, err
	}

	log.Printf("WARN: %s failed for %s, trying %s fallback: %v", c.Name(), pageURL, c.opts.Fallback.Name(), err)
	start := time.Now()
	result, fbErr := c.opts.Fallback.Fetch(ctx, pageURL, format)
	if fbErr != nil {
		c.observeRequest(c.opts.Fallback.Name(), "error", time.Since(start))
		return nil, fmt.Errorf("fallback failed after %s error: %w", c.Name(), fbErr)
	}
	c.observeRequest(c.opts.Fallback.Name(), "ok", time.Since(start))
	return result, nil
}

// fetchPrimary runs the breaker-gated retry loop against the wrapped
// provider.
func (c *Client) fetchPrimary(ctx context.Context, pageURL string, format Format) (*Result, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	fetcher := c.provider
	proxyRetried := false

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retry.MaxRetries; attempt++ {
		start := time.Now()
		result, err := fetcher.Fetch(ctx, pageURL, format)
		if err == nil {
			c.breaker.RecordSuccess()
			c.observeRequest(fetcher.Name(), "ok", time.Since(start))
			c.observeCredits(fetcher.Name(), result.Metadata.CreditsUsed)
			return result, nil
		}
		c.observeRequest(fetcher.Name(), "error", time.Since(start))
		lastErr = err

		if errors.Is(err, ErrConfiguration) || ctx.Err() != nil {
			break
		}

		// HTTP 422 while rendering through a location proxy: exactly one
		// retry with the proxy disabled, not a blind repeat.
		if IsContentUnavailable(err) {
			if toggler, ok := fetcher.(ProxyToggler); ok && !proxyRetried {
				proxyRetried = true
				fetcher = toggler.WithoutProxy()
				log.Printf("WARN: %s returned 422 for %s, retrying once without proxy", c.Name(), pageURL)
				continue
			}
			break
		}

		delay, retryable := c.opts.Retry.backoffFor(err, attempt)
		if !retryable || attempt == c.opts.Retry.MaxRetries {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	if opened := c.breaker.RecordFailure(); opened {
		log.Printf("ERROR: circuit breaker opened for %s after %d consecutive failures", c.Name(), c.opts.BreakerThreshold)
		if c.opts.Observer != nil {
			c.opts.Observer.BreakerOpened(c.Name())
		}
	}
	return nil, lastErr
}

// Map proxies to the wrapped provider's site-map endpoint, if it has one,
// applying the same rate limiting and breaker accounting as Fetch.
func (c *Client) Map(ctx context.Context, baseURL string, limit int) ([]string, int, error) {
	mapper, ok := c.provider.(Mapper)
	if !ok {
		return nil, 0, fmt.Errorf("%w: provider %s has no map endpoint", ErrConfiguration, c.Name())
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, 0, err
	}
	defer c.limiter.Release()

	if err := c.breaker.Allow(); err != nil {
		return nil, 0, err
	}

	start := time.Now()
	urls, credits, err := mapper.Map(ctx, baseURL, limit)
	if err != nil {
		c.breaker.RecordFailure()
		c.observeRequest(c.Name(), "error", time.Since(start))
		return nil, credits, err
	}
	c.breaker.RecordSuccess()
	c.observeRequest(c.Name(), "ok", time.Since(start))
	c.observeCredits(c.Name(), credits)
	return urls, credits, nil
}

func (c *Client) observeRequest(provider, outcome string, d time.Duration) {
	if c.opts.Observer != nil {
		c.opts.Observer.ProviderRequest(provider, outcome, d)
	}
}

func (c *Client) observeCredits(provider string, credits int) {
	if c.opts.Observer != nil && credits > 0 {
		c.opts.Observer.CreditsUsed(provider, credits)
	}
}
