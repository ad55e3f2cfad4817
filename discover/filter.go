// Package discover finds candidate article URLs for a site using a
// cost-ordered chain of strategies: sitemap (free), RSS/Atom feed (free),
// the hosted provider's map endpoint (paid), and finally a pagination
// walker over live listing pages when everything else underperforms.
package discover

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Candidate is one discovered article URL. Discovery never emits the same
// canonical URL twice within a single result set.
type Candidate struct {
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
}

// sectionSegments are path segments that mark listing, archive or feed URLs
// rather than individual posts.
var sectionSegments = map[string]bool{
	"category":   true,
	"categories": true,
	"tag":        true,
	"tags":       true,
	"topic":      true,
	"topics":     true,
	"author":     true,
	"authors":    true,
	"archive":    true,
	"archives":   true,
	"page":       true,
	"paged":      true,
	"feed":       true,
	"rss":        true,
	"atom":       true,
	"search":     true,
	"wp-content": true,
	"wp-json":    true,
	"sitemap":    true,
}

var (
	numericSegment = regexp.MustCompile(`^\d+$`)
	pagedSegment   = regexp.MustCompile(`^page-?\d+$`)
	assetExtension = regexp.MustCompile(`(?i)\.(xml|jpe?g|png|gif|webp|svg|pdf|css|js|ico|mp4|zip)$`)
)

// LooksLikePost applies path-segment heuristics to decide whether a URL
// points at an individual post rather than a category, archive, pagination
// or feed page. The test favors slug-like last segments: hyphenated or long
// enough that it cannot be a section name.
func LooksLikePost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	segments := splitPath(parsed.Path)
	if len(segments) == 0 {
		return false
	}

	for _, seg := range segments {
		if sectionSegments[strings.ToLower(seg)] {
			return false
		}
	}

	last := strings.ToLower(segments[len(segments)-1])
	if numericSegment.MatchString(last) || pagedSegment.MatchString(last) {
		return false
	}
	if assetExtension.MatchString(last) {
		return false
	}

	// Bare single-segment paths (/about, /pricing) are site pages, not
	// posts, unless the segment itself is slug-like.
	if len(segments) == 1 && !strings.Contains(last, "-") {
		return false
	}

	// Short, hyphen-free segments (/blog/news) are almost always sections.
	if !strings.Contains(last, "-") && len(last) < 16 {
		return false
	}

	return true
}

// TitleFromSlug derives a readable title from a URL's last path segment:
// hyphens and underscores become spaces and each word is capitalized.
func TitleFromSlug(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	slug := path.Base(parsed.Path)
	slug = strings.TrimSuffix(slug, path.Ext(slug))
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)

	words := strings.Fields(slug)
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + w[size:]
	}
	return strings.Join(words, " ")
}

// CanonicalURL normalizes a URL for dedup within a result set: lowercase
// scheme and host, fragment dropped, trailing slash trimmed.
func CanonicalURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String()
}

func splitPath(p string) []string {
	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
