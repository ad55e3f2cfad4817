// Package dedup partitions candidate URLs against already-ingested
// fingerprints. The check is a pure function over one batch read of the
// store: no network calls, and every input URL lands in exactly one of the
// new or duplicate sets.
package dedup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Store is the persistence collaborator: it lists the fingerprints already
// ingested for a scope and registers new ones after ingestion. The source
// URL is the fingerprint key.
type Store interface {
	// ListFingerprints returns existing source URLs mapped to their
	// fingerprint IDs for the given scope.
	ListFingerprints(ctx context.Context, scope string) (map[string]uuid.UUID, error)

	// Register records a newly ingested URL and returns its fingerprint ID.
	Register(ctx context.Context, scope, url string) (uuid.UUID, error)

	// Close releases the underlying connection.
	Close() error
}

// Checked is one URL's duplicate verdict.
type Checked struct {
	URL         string     `json:"url"`
	IsDuplicate bool       `json:"is_duplicate"`
	ExistingID  *uuid.UUID `json:"existing_fingerprint_id,omitempty"`
}

// Stats summarizes a duplicate check.
type Stats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Duplicates int `json:"duplicates"`
}

// Result partitions one batch of candidate URLs. len(New)+len(Duplicates)
// always equals the input length, and All preserves input order.
type Result struct {
	All        []Checked `json:"all"`
	New        []string  `json:"new"`
	Duplicates []string  `json:"duplicates"`
	Stats      Stats     `json:"stats"`
}

// Checker performs duplicate checks against a fingerprint store.
type Checker struct {
	store Store
}

// NewChecker builds a checker over the given store.
func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// Check classifies every URL as new or duplicate by exact source-URL match
// against the scope's existing fingerprints. One store read, no network.
// Running it twice against an unchanged store yields identical results.
func (c *Checker) Check(ctx context.Context, scope string, urls []string) (*Result, error) {
	existing, err := c.store.ListFingerprints(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list fingerprints: %w", err)
	}

	result := &Result{
		All:        make([]Checked, 0, len(urls)),
		New:        []string{},
		Duplicates: []string{},
	}

	for _, u := range urls {
		checked := Checked{URL: u}
		if id, ok := existing[u]; ok {
			checked.IsDuplicate = true
			idCopy := id
			checked.ExistingID = &idCopy
			result.Duplicates = append(result.Duplicates, u)
		} else {
			result.New = append(result.New, u)
		}
		result.All = append(result.All, checked)
	}

	result.Stats = Stats{
		Total:      len(urls),
		New:        len(result.New),
		Duplicates: len(result.Duplicates),
	}
	return result, nil
}
