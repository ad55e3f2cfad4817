package discover

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/berteloot/harvest/extract"
	"github.com/berteloot/harvest/reader"
)

// strongResultThreshold is the candidate count below which a free strategy
// is considered weak and a second opinion is consulted.
const strongResultThreshold = 5

// Result is the outcome of running the discovery chain against a site.
type Result struct {
	URLs        []Candidate `json:"urls"`
	Method      string      `json:"method"`
	CreditsUsed int         `json:"credits_used"`
	// FallbackRequired signals that every strategy came up empty and the
	// caller should walk the live listing page instead.
	FallbackRequired bool `json:"fallback_required"`
}

// Observer receives discovery metrics events. May be nil.
type Observer interface {
	URLsDiscovered(method string, count int)
}

// Chain runs the discovery strategies in strict cost order: sitemap and
// RSS are free, the provider map endpoint costs credits and is consulted
// only when the free strategies find nothing.
type Chain struct {
	httpClient *http.Client
	mapper     reader.Mapper
	obs        Observer
}

// NewChain builds a discovery chain. mapper may be nil when no paid
// provider is configured; obs may be nil.
func NewChain(httpClient *http.Client, mapper reader.Mapper, obs Observer) *Chain {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Chain{httpClient: httpClient, mapper: mapper, obs: obs}
}

// strategy is one (name, run) pair in the cost-ordered chain.
type strategy struct {
	name string
	paid bool
	run  func(ctx context.Context, baseURL string, maxURLs int) ([]Candidate, int, error)
}

// Discover tries each strategy in cost order and returns the best result.
// A strong free result short-circuits the chain; a weak one makes the next
// free strategy a second opinion, keeping whichever yields more. Paid
// strategies run only when the free ones found nothing at all. When every
// strategy fails, FallbackRequired is set so the caller can walk the live
// listing page.
func (c *Chain) Discover(ctx context.Context, baseURL string, maxURLs int) (*Result, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is empty")
	}

	strategies := []strategy{
		{name: "sitemap", run: c.fromSitemap},
		{name: "rss", run: c.fromFeed},
		{name: "map", paid: true, run: c.fromMap},
	}

	var best *Result
	creditsUsed := 0

	for _, s := range strategies {
		if best != nil && len(best.URLs) >= strongResultThreshold {
			break
		}
		if s.paid && best != nil {
			// A weak free result still beats paying for a map call.
			break
		}

		urls, credits, err := s.run(ctx, baseURL, maxURLs)
		creditsUsed += credits
		if err != nil {
			log.Printf("WARN: Discovery strategy %s failed for %s: %v", s.name, baseURL, err)
			continue
		}
		if len(urls) == 0 {
			log.Printf("INFO: Discovery strategy %s found nothing for %s", s.name, baseURL)
			continue
		}

		log.Printf("INFO: Discovery strategy %s found %d candidates for %s", s.name, len(urls), baseURL)
		if best == nil || len(urls) > len(best.URLs) {
			best = &Result{URLs: urls, Method: s.name}
		}
	}

	if best == nil {
		return &Result{Method: "none", CreditsUsed: creditsUsed, FallbackRequired: true}, nil
	}

	best.CreditsUsed = creditsUsed
	if c.obs != nil {
		c.obs.URLsDiscovered(best.Method, len(best.URLs))
	}
	return best, nil
}

// fromMap discovers candidates through the paid provider map endpoint.
func (c *Chain) fromMap(ctx context.Context, baseURL string, maxURLs int) ([]Candidate, int, error) {
	if c.mapper == nil {
		return nil, 0, fmt.Errorf("no map provider configured")
	}

	urls, credits, err := c.mapper.Map(ctx, baseURL, maxURLs)
	if err != nil {
		return nil, credits, fmt.Errorf("map endpoint failed: %w", err)
	}

	candidates := make([]Candidate, 0, len(urls))
	seen := map[string]bool{}
	for _, raw := range urls {
		u := CanonicalURL(raw)
		if u == "" || seen[u] || !LooksLikePost(u) {
			continue
		}
		seen[u] = true
		candidates = append(candidates, Candidate{
			URL:           u,
			Title:         TitleFromSlug(u),
			PublishedDate: extract.DateFromURL(u),
		})
		if maxURLs > 0 && len(candidates) >= maxURLs {
			break
		}
	}
	return candidates, credits, nil
}
