package discover

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/berteloot/harvest/extract"
)

// maxChildSitemaps caps how many child sitemaps are followed from a sitemap
// index. Large sites publish hundreds; the first few carry the posts.
const maxChildSitemaps = 10

// sitemapTimeout bounds a single sitemap document fetch.
const sitemapTimeout = 10 * time.Second

// sitemapPaths are tried in order against the site root.
var sitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml"}

// sitemapURLSet is the <urlset> form of a sitemap document.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// sitemapIndex is the <sitemapindex> form, referencing child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapURL `xml:"sitemap"`
}

// fromSitemap discovers post candidates from the site's sitemap. It follows
// an index document into up to maxChildSitemaps children and filters entries
// through the post-URL heuristics.
func (c *Chain) fromSitemap(ctx context.Context, baseURL string, maxURLs int) ([]Candidate, int, error) {
	root := strings.TrimSuffix(baseURL, "/")

	var body []byte
	var err error
	for _, p := range sitemapPaths {
		body, err = c.fetchXML(ctx, root+p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("no sitemap found at %s: %w", root, err)
	}

	entries, children, err := parseSitemap(body)
	if err != nil {
		return nil, 0, err
	}

	// Index document: gather entries from its children.
	if len(children) > 0 {
		if len(children) > maxChildSitemaps {
			children = children[:maxChildSitemaps]
		}
		for _, child := range children {
			childBody, err := c.fetchXML(ctx, child.Loc)
			if err != nil {
				log.Printf("WARN: Skipping child sitemap %s: %v", child.Loc, err)
				continue
			}
			childEntries, _, err := parseSitemap(childBody)
			if err != nil {
				log.Printf("WARN: Skipping child sitemap %s: %v", child.Loc, err)
				continue
			}
			entries = append(entries, childEntries...)
		}
	}

	candidates := make([]Candidate, 0, len(entries))
	seen := map[string]bool{}
	for _, entry := range entries {
		loc := CanonicalURL(strings.TrimSpace(entry.Loc))
		if loc == "" || seen[loc] || !LooksLikePost(loc) {
			continue
		}
		seen[loc] = true

		cand := Candidate{URL: loc, Title: TitleFromSlug(loc)}
		if entry.LastMod != "" {
			cand.PublishedDate = parseLastMod(entry.LastMod)
		}
		if cand.PublishedDate == nil {
			cand.PublishedDate = extract.DateFromURL(loc)
		}
		candidates = append(candidates, cand)

		if maxURLs > 0 && len(candidates) >= maxURLs {
			break
		}
	}

	return candidates, 0, nil
}

// parseSitemap decodes a sitemap document as either a urlset or an index.
func parseSitemap(body []byte) (entries, children []sitemapURL, err error) {
	var urlset sitemapURLSet
	if err := xml.Unmarshal(body, &urlset); err == nil && len(urlset.URLs) > 0 {
		return urlset.URLs, nil, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		return nil, index.Sitemaps, nil
	}

	return nil, nil, fmt.Errorf("document is neither a urlset nor a sitemap index")
}

// fetchXML retrieves a sitemap document, bounded by sitemapTimeout.
func (c *Chain) fetchXML(ctx context.Context, docURL string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, sitemapTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", docURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// parseLastMod parses sitemap lastmod values, which appear as either full
// timestamps or bare dates.
func parseLastMod(raw string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return &t
		}
	}
	return nil
}
