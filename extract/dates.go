// Package extract turns fetched pages into library-ready content: it cleans
// navigation and footer noise out of extracted markdown and resolves publish
// dates from the several places sites hide them.
package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// metaDateSelectors lists the meta tags that carry a publish date, in
// precedence order.
var metaDateSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[name="article:published_time"]`,
	`meta[property="og:published_time"]`,
	`meta[itemprop="datePublished"]`,
	`meta[name="publish-date"]`,
	`meta[name="publication_date"]`,
	`meta[name="date"]`,
}

// dateLayouts are the formats date candidates are parsed against.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
}

var (
	textDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}`),
		regexp.MustCompile(`\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	}

	urlDatePath = regexp.MustCompile(`/(20\d{2})/(\d{1,2})(?:/(\d{1,2}))?(?:/|$)`)
	urlDateSlug = regexp.MustCompile(`(20\d{2})-(\d{2})-(\d{2})`)
)

// DateFromHTML resolves a publish date from a parsed page with fixed
// precedence: meta tags, then JSON-LD structured data, then a visible date
// near the top of the text, then a date embedded in the URL path. The first
// candidate that parses to a valid, non-future date wins. Returns nil when
// nothing resolves.
func DateFromHTML(doc *goquery.Document, pageURL string) *time.Time {
	for _, selector := range metaDateSelectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if t := parseDate(content); t != nil {
				return t
			}
		}
	}
	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t := parseDate(datetime); t != nil {
			return t
		}
	}

	if t := dateFromJSONLD(doc); t != nil {
		return t
	}

	if t := dateFromVisibleText(doc.Find("body").Text()); t != nil {
		return t
	}

	return DateFromURL(pageURL)
}

// DateFromContent resolves a publish date from extracted markdown, used in
// the extraction phase where no HTML is available: a visible date near the
// top of the content, then the URL path.
func DateFromContent(markdown, pageURL string) *time.Time {
	if t := dateFromVisibleText(markdown); t != nil {
		return t
	}
	return DateFromURL(pageURL)
}

// DateFromURL extracts a date embedded in the URL path, e.g. /2024/01/15/
// or a 2024-01-15 slug prefix.
func DateFromURL(pageURL string) *time.Time {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	path := parsed.Path

	if m := urlDatePath.FindStringSubmatch(path); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day := 1
		if m[3] != "" {
			day, _ = strconv.Atoi(m[3])
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			return validDate(t)
		}
	}

	if m := urlDateSlug.FindStringSubmatch(path); m != nil {
		if t := parseDate(m[0]); t != nil {
			return t
		}
	}

	return nil
}

// dateFromJSONLD scans structured-data blocks for datePublished values,
// recursing through @graph and nested objects.
func dateFromJSONLD(doc *goquery.Document) *time.Time {
	var found *time.Time
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if t := findDatePublished(data); t != nil {
			found = t
			return false
		}
		return true
	})
	return found
}

func findDatePublished(node any) *time.Time {
	switch v := node.(type) {
	case map[string]any:
		for _, key := range []string{"datePublished", "dateCreated", "uploadDate"} {
			if raw, ok := v[key].(string); ok {
				if t := parseDate(raw); t != nil {
					return t
				}
			}
		}
		for _, child := range v {
			if t := findDatePublished(child); t != nil {
				return t
			}
		}
	case []any:
		for _, child := range v {
			if t := findDatePublished(child); t != nil {
				return t
			}
		}
	}
	return nil
}

// visibleTextWindow is how much of the top of the content is scanned for a
// visible date. Dates further down are more likely comment timestamps or
// footer noise.
const visibleTextWindow = 1200

func dateFromVisibleText(text string) *time.Time {
	window := strings.TrimSpace(text)
	if len(window) > visibleTextWindow {
		window = window[:visibleTextWindow]
	}
	for _, pattern := range textDatePatterns {
		if match := pattern.FindString(window); match != "" {
			if t := parseDate(match); t != nil {
				return t
			}
		}
	}
	return nil
}

// ParseDate parses a date string against the known layouts, returning nil
// unless it yields a valid, non-future date. Used directly when a caller
// already holds an explicit date value, e.g. a provider-reported publish
// time or a listing-page date, which take precedence over page scanning.
func ParseDate(raw string) *time.Time {
	return parseDate(raw)
}

// parseDate tries each known layout and returns the first valid, non-future
// parse. Whitespace is trimmed; comma-free month-name forms are handled by
// the layout list.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return validDate(t)
		}
	}
	return nil
}

// validDate rejects implausible dates: anything in the future (beyond a day
// of clock skew) or before 1990.
func validDate(t time.Time) *time.Time {
	if t.After(time.Now().Add(24 * time.Hour)) {
		return nil
	}
	if t.Year() < 1990 {
		return nil
	}
	return &t
}
