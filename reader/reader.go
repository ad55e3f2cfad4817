// Package reader provides a resilient, uniform fetch contract over
// interchangeable page-rendering providers: a paid hosted reader API, an
// out-of-process headless renderer, and a plain HTTP fallback. The Client
// type composes rate limiting, circuit breaking, retry/backoff, and
// fallback around any provider.
package reader

import (
	"context"
	"time"
)

// Format selects the representation a provider should return for a page.
type Format string

const (
	// FormatMarkdown requests the page rendered as readable markdown.
	FormatMarkdown Format = "markdown"
	// FormatHTML requests the fully rendered page HTML.
	FormatHTML Format = "html"
	// FormatLinks requests the list of links found on the page.
	FormatLinks Format = "links"
)

// Metadata carries page-level details a provider reports alongside content.
type Metadata struct {
	Title         string
	Description   string
	PublishedTime string
	StatusCode    int
	SourceURL     string
	Provider      string
	CreditsUsed   int
}

// Result is the uniform output of a page fetch, regardless of provider.
type Result struct {
	Content  string
	Links    []string
	Metadata Metadata
}

// Fetcher is the uniform contract all providers implement. Fetch must honor
// context cancellation and carry an explicit timeout internally.
type Fetcher interface {
	// Fetch retrieves the page at url in the requested format.
	Fetch(ctx context.Context, url string, format Format) (*Result, error)

	// Name identifies the provider for logging and metrics.
	Name() string
}

// Mapper is implemented by providers that expose a paid site-map endpoint
// returning known URLs for a site without crawling it.
type Mapper interface {
	// Map returns up to limit URLs known for the site, plus credits used.
	Map(ctx context.Context, baseURL string, limit int) ([]string, int, error)
}

// ProxyToggler is implemented by providers that route requests through a
// location-based proxy and can produce a proxy-free variant of themselves.
// The client uses it for the single degraded retry after an HTTP 422.
type ProxyToggler interface {
	WithoutProxy() Fetcher
}

// Observer receives client-level events for metrics collection. All methods
// must be safe for concurrent use. A nil Observer disables observation.
type Observer interface {
	ProviderRequest(provider, outcome string, duration time.Duration)
	CreditsUsed(provider string, credits int)
	BreakerOpened(provider string)
}
