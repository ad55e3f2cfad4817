package reader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DirectFetcher fetches pages with plain unauthenticated HTTP and
// browser-like headers. It is free but cannot render JavaScript, so it
// serves as the last-resort fallback after paid providers exhaust their
// retries. A per-domain failure counter suppresses further attempts against
// a domain once it has blocked us repeatedly, to avoid hammering it.
type DirectFetcher struct {
	client           *http.Client
	failureThreshold int

	mu             sync.Mutex
	domainFailures map[string]int
}

// defaultDirectTimeout bounds a direct page fetch.
const defaultDirectTimeout = 10 * time.Second

// NewDirectFetcher builds a direct fetcher. failureThreshold is the number
// of failures per domain before further attempts are suppressed; values < 1
// default to 3.
func NewDirectFetcher(failureThreshold int) *DirectFetcher {
	if failureThreshold < 1 {
		failureThreshold = 3
	}
	return &DirectFetcher{
		client:           &http.Client{Timeout: defaultDirectTimeout},
		failureThreshold: failureThreshold,
		domainFailures:   make(map[string]int),
	}
}

// Name identifies the fetcher in logs and metrics.
func (df *DirectFetcher) Name() string { return "direct" }

// Fetch retrieves the raw page HTML. The format argument is accepted for
// contract compatibility; direct fetches always return HTML since no
// markdown conversion happens without a rendering provider.
func (df *DirectFetcher) Fetch(ctx context.Context, pageURL string, _ Format) (*Result, error) {
	domain, err := domainOf(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", pageURL, err)
	}

	if df.suppressed(domain) {
		return nil, fmt.Errorf("%w: %s", ErrDomainSuppressed, domain)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := df.client.Do(req)
	if err != nil {
		df.recordFailure(domain)
		return nil, fmt.Errorf("direct fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		df.recordFailure(domain)
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &RateLimitedError{Provider: df.Name(), RetryAfter: retryAfter(resp)}
		}
		if resp.StatusCode >= 500 {
			return nil, &ServiceUnavailableError{Provider: df.Name(), StatusCode: resp.StatusCode}
		}
		return nil, &ContentUnavailableError{Provider: df.Name(), StatusCode: resp.StatusCode, Reason: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		df.recordFailure(domain)
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	df.recordSuccess(domain)
	return &Result{
		Content: string(body),
		Metadata: Metadata{
			StatusCode: resp.StatusCode,
			SourceURL:  pageURL,
			Provider:   df.Name(),
		},
	}, nil
}

// suppressed reports whether the domain has failed too many times.
func (df *DirectFetcher) suppressed(domain string) bool {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.domainFailures[domain] >= df.failureThreshold
}

func (df *DirectFetcher) recordFailure(domain string) {
	df.mu.Lock()
	df.domainFailures[domain]++
	df.mu.Unlock()
}

func (df *DirectFetcher) recordSuccess(domain string) {
	df.mu.Lock()
	delete(df.domainFailures, domain)
	df.mu.Unlock()
}

// domainOf extracts the lowercase host from a URL.
func domainOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in URL")
	}
	return strings.ToLower(parsed.Host), nil
}

// setBrowserHeaders makes the request look like an ordinary browser visit.
// Sites that block obvious bots often serve these requests normally.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
}
