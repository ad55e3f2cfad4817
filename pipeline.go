package harvest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/berteloot/harvest/dedup"
	"github.com/berteloot/harvest/discover"
	"github.com/berteloot/harvest/extract"
	"github.com/berteloot/harvest/metrics"
	"github.com/berteloot/harvest/reader"
	"github.com/berteloot/harvest/validate"
)

// Config wires the pipeline's collaborators.
type Config struct {
	// Reader is the resilient client over the paid rendering provider.
	// Required for scraping, the map strategy and the pagination walker.
	Reader *reader.Client
	// ValidationFetcher fetches pages during validation. Validation is
	// free, so this defaults to a direct HTTP fetcher rather than spending
	// provider credits.
	ValidationFetcher reader.Fetcher
	// Store holds ingestion fingerprints for duplicate checking.
	Store dedup.Store
	// Metrics receives pipeline metrics. May be nil.
	Metrics *metrics.Collector
	// MaxWalkPages bounds the pagination walker. Default 50.
	MaxWalkPages int
	// Concurrency bounds the validation worker pool. Default 5.
	Concurrency int
}

// Pipeline runs the discovery, duplicate-check and extraction phases. All
// phases complete within one invocation; results from an earlier phase
// survive a later phase failing.
type Pipeline struct {
	client      *reader.Client
	validation  reader.Fetcher
	chain       *discover.Chain
	walker      *discover.Walker
	checker     *dedup.Checker
	store       dedup.Store
	concurrency int
}

// New builds a pipeline from the given configuration.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline requires a fingerprint store")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 5
	}
	if cfg.ValidationFetcher == nil {
		cfg.ValidationFetcher = reader.NewDirectFetcher(3)
	}

	var mapper reader.Mapper
	var walkFetcher reader.Fetcher
	if cfg.Reader != nil {
		mapper = cfg.Reader
		walkFetcher = cfg.Reader
	} else {
		// No paid provider: the walker degrades to direct fetching, which
		// cannot render JavaScript-driven listings but handles plain ones.
		walkFetcher = cfg.ValidationFetcher
	}

	return &Pipeline{
		client:      cfg.Reader,
		validation:  cfg.ValidationFetcher,
		chain:       discover.NewChain(nil, mapper, cfg.Metrics),
		walker:      discover.NewWalker(walkFetcher, cfg.MaxWalkPages, cfg.Metrics),
		checker:     dedup.NewChecker(cfg.Store),
		store:       cfg.Store,
		concurrency: cfg.Concurrency,
	}, nil
}

// DiscoverOptions tunes one discovery run.
type DiscoverOptions struct {
	// MaxURLs caps the returned candidate count. Zero means unlimited.
	MaxURLs int
	// MaxPosts caps the pagination walker's yield when the fallback runs.
	MaxPosts int
	// Since and Until keep only candidates whose resolved publish date
	// falls inside the range. Undated candidates are always kept.
	Since *time.Time
	Until *time.Time
	// SkipValidation returns raw discovery output without per-page
	// classification fetches.
	SkipValidation bool
}

// Discover finds candidate article URLs for baseURL using the cost-ordered
// strategy chain, walking the live listing page only when the chain comes
// up empty, then classifies the candidates unless validation is skipped.
func (p *Pipeline) Discover(ctx context.Context, baseURL string, opts DiscoverOptions) (*DiscoveryResult, error) {
	chainResult, err := p.chain.Discover(ctx, baseURL, opts.MaxURLs)
	if err != nil {
		return nil, fmt.Errorf("discovery failed for %s: %w", baseURL, err)
	}

	result := &DiscoveryResult{
		URLs:        chainResult.URLs,
		Method:      chainResult.Method,
		CreditsUsed: chainResult.CreditsUsed,
	}

	if chainResult.FallbackRequired {
		log.Printf("INFO: Discovery chain exhausted for %s, walking listing page", baseURL)
		walked, err := p.walker.Walk(ctx, baseURL, opts.MaxPosts)
		if err != nil {
			return nil, fmt.Errorf("pagination walk failed for %s: %w", baseURL, err)
		}
		result.URLs = walked
		result.Method = "walker"
		result.FallbackUsed = true
	}

	if !opts.SkipValidation {
		result.URLs = p.validateCandidates(ctx, result.URLs)
	}

	result.URLs = filterByDate(result.URLs, opts.Since, opts.Until)

	if opts.MaxURLs > 0 && len(result.URLs) > opts.MaxURLs {
		result.URLs = result.URLs[:opts.MaxURLs]
	}
	return result, nil
}

// validateCandidates classifies candidates with a bounded worker pool,
// dropping only those the classifier positively rejects. Fetch failures
// fail open: absence of evidence is not evidence of absence.
func (p *Pipeline) validateCandidates(ctx context.Context, candidates []DiscoveredURL) []DiscoveredURL {
	if len(candidates) == 0 {
		return candidates
	}

	keep := make([]bool, len(candidates))
	enriched := make([]DiscoveredURL, len(candidates))
	copy(enriched, candidates)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, p.concurrency)

	for i := range candidates {
		semaphore <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			candidate := candidates[idx]
			page, err := p.validation.Fetch(ctx, candidate.URL, reader.FormatHTML)
			if err != nil {
				log.Printf("WARN: Validation fetch failed for %s (keeping candidate): %v", candidate.URL, err)
				keep[idx] = true
				return
			}

			verdict := validate.Page(candidate.URL, page.Content)
			keep[idx] = verdict.IsArticle
			if verdict.IsArticle {
				if verdict.Title != "" {
					enriched[idx].Title = verdict.Title
				}
				if enriched[idx].PublishedDate == nil {
					enriched[idx].PublishedDate = verdict.PublishedDate
				}
			}
		}(i)
	}
	wg.Wait()

	kept := make([]DiscoveredURL, 0, len(candidates))
	for i := range enriched {
		if keep[i] {
			kept = append(kept, enriched[i])
		}
	}
	if dropped := len(candidates) - len(kept); dropped > 0 {
		log.Printf("INFO: Validation dropped %d of %d candidates", dropped, len(candidates))
	}
	return kept
}

// filterByDate keeps candidates inside the requested date range. Candidates
// without a resolved date are kept.
func filterByDate(candidates []DiscoveredURL, since, until *time.Time) []DiscoveredURL {
	if since == nil && until == nil {
		return candidates
	}
	kept := make([]DiscoveredURL, 0, len(candidates))
	for _, c := range candidates {
		if c.PublishedDate != nil {
			if since != nil && c.PublishedDate.Before(*since) {
				continue
			}
			if until != nil && c.PublishedDate.After(*until) {
				continue
			}
		}
		kept = append(kept, c)
	}
	return kept
}

// CheckDuplicates partitions candidates against the scope's existing
// fingerprints. One batch store read, no network.
func (p *Pipeline) CheckDuplicates(ctx context.Context, candidates []DiscoveredURL, scope string) (*DuplicateCheckResult, error) {
	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.URL
	}

	checked, err := p.checker.Check(ctx, scope, urls)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	result := &DuplicateCheckResult{
		All:   make([]CheckedURL, len(candidates)),
		Stats: checked.Stats,
	}
	for i, c := range candidates {
		verdict := checked.All[i]
		result.All[i] = CheckedURL{
			DiscoveredURL:         c,
			IsDuplicate:           verdict.IsDuplicate,
			ExistingFingerprintID: verdict.ExistingID,
		}
		if verdict.IsDuplicate {
			result.Duplicates = append(result.Duplicates, c)
		} else {
			result.New = append(result.New, c)
		}
	}
	return result, nil
}

// ScrapeSelected extracts full content for a pre-deduplicated, explicitly
// selected URL list. The loop is sequential on purpose: provider pacing
// comes from the reader client's queue, and a parallel batch would only
// stack up behind it. Each URL's failure is isolated; the output always
// matches the input in length and order. Only a missing reader client
// fails the whole call.
func (p *Pipeline) ScrapeSelected(ctx context.Context, urls []string, onProgress ProgressFunc) ([]ScrapedPost, error) {
	if p.client == nil {
		return nil, fmt.Errorf("%w: scraping requires a reader provider", reader.ErrConfiguration)
	}

	posts := make([]ScrapedPost, len(urls))
	for i, pageURL := range urls {
		if onProgress != nil {
			onProgress(i+1, len(urls), pageURL)
		}
		posts[i] = p.scrapeOne(ctx, pageURL)
		if !posts[i].Success {
			log.Printf("WARN: Scrape failed for %s: %s", pageURL, posts[i].Error)
		}
	}
	return posts, nil
}

// scrapeOne fetches and cleans a single article.
func (p *Pipeline) scrapeOne(ctx context.Context, pageURL string) ScrapedPost {
	post := ScrapedPost{URL: pageURL}

	result, err := p.client.Fetch(ctx, pageURL, reader.FormatMarkdown)
	if err != nil {
		post.Error = err.Error()
		return post
	}

	post.Content = extract.Clean(result.Content)
	post.Title = result.Metadata.Title
	if post.Title == "" {
		post.Title = discover.TitleFromSlug(pageURL)
	}

	if result.Metadata.PublishedTime != "" {
		post.PublishedDate = extract.ParseDate(result.Metadata.PublishedTime)
	}
	if post.PublishedDate == nil {
		post.PublishedDate = extract.DateFromContent(post.Content, pageURL)
	}

	post.Success = true
	return post
}

// RegisterIngested records fingerprints for successfully ingested posts so
// later duplicate checks see them.
func (p *Pipeline) RegisterIngested(ctx context.Context, scope string, posts []ScrapedPost) error {
	for _, post := range posts {
		if !post.Success {
			continue
		}
		if _, err := p.store.Register(ctx, scope, post.URL); err != nil {
			return fmt.Errorf("failed to register %s: %w", post.URL, err)
		}
	}
	return nil
}
