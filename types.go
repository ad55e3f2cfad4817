// Package harvest discovers, validates and extracts readable article
// content from third-party websites for ingestion into a content library.
// The pipeline exposes three independently callable operations: Discover
// and CheckDuplicates are cheap and may run eagerly; ScrapeSelected is
// credit-bearing and runs only after explicit selection.
package harvest

import (
	"time"

	"github.com/google/uuid"

	"github.com/berteloot/harvest/dedup"
	"github.com/berteloot/harvest/discover"
)

// DiscoveredURL is one candidate article found during discovery.
type DiscoveredURL = discover.Candidate

// CheckedURL is a discovered URL enriched with its duplicate verdict.
type CheckedURL struct {
	DiscoveredURL
	IsDuplicate           bool       `json:"is_duplicate"`
	ExistingFingerprintID *uuid.UUID `json:"existing_fingerprint_id,omitempty"`
}

// DiscoveryResult is the outcome of the discovery phase, including which
// strategy won and what it cost.
type DiscoveryResult struct {
	URLs        []DiscoveredURL `json:"urls"`
	Method      string          `json:"method"`
	CreditsUsed int             `json:"credits_used"`
	// FallbackUsed reports that the strategy chain came up empty and the
	// pagination walker produced the result instead.
	FallbackUsed bool `json:"fallback_used"`
}

// DuplicateCheckResult partitions a candidate batch against the store.
// Every input URL appears in exactly one of New and Duplicates.
type DuplicateCheckResult struct {
	All        []CheckedURL    `json:"all"`
	New        []DiscoveredURL `json:"new"`
	Duplicates []DiscoveredURL `json:"duplicates"`
	Stats      dedup.Stats     `json:"stats"`
}

// ScrapedPost is the extraction result for one selected URL. The output
// slice of ScrapeSelected always matches its input in length and order;
// failures are carried per entry rather than aborting the batch.
type ScrapedPost struct {
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Success       bool       `json:"success"`
	Error         string     `json:"error,omitempty"`
}

// ProgressFunc reports scraping progress: item index (1-based), total, and
// the URL being processed.
type ProgressFunc func(index, total int, url string)
