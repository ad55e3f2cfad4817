package discover

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// feedPaths are common feed locations tried in order against the site root.
var feedPaths = []string{
	"/feed",
	"/rss",
	"/feed.xml",
	"/rss.xml",
	"/atom.xml",
	"/index.xml",
	"/blog/feed",
	"/blog/rss.xml",
}

// fromFeed discovers post candidates from the site's RSS or Atom feed. The
// gofeed parser detects and normalizes both formats.
func (c *Chain) fromFeed(ctx context.Context, baseURL string, maxURLs int) ([]Candidate, int, error) {
	root := strings.TrimSuffix(baseURL, "/")
	parser := gofeed.NewParser()
	parser.Client = c.httpClient

	var feed *gofeed.Feed
	var lastErr error
	for _, p := range feedPaths {
		parsed, err := parser.ParseURLWithContext(root+p, ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if len(parsed.Items) > 0 {
			feed = parsed
			break
		}
	}
	if feed == nil {
		return nil, 0, fmt.Errorf("no feed found at %s: %w", root, lastErr)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	seen := map[string]bool{}
	for _, item := range feed.Items {
		link := CanonicalURL(strings.TrimSpace(item.Link))
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		cand := Candidate{URL: link, Title: strings.TrimSpace(item.Title)}
		if cand.Title == "" {
			cand.Title = TitleFromSlug(link)
		}
		if item.PublishedParsed != nil {
			cand.PublishedDate = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			cand.PublishedDate = item.UpdatedParsed
		}
		candidates = append(candidates, cand)

		if maxURLs > 0 && len(candidates) >= maxURLs {
			break
		}
	}

	return candidates, 0, nil
}
