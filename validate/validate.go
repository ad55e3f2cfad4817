// Package validate decides whether a fetched page is a genuine article.
// The classifier reads JSON-LD schema types first, then falls back to
// lenient content heuristics. It is deliberately recall-biased: a missed
// real article costs more than one wasted validation fetch, so uncertainty
// resolves to "keep".
package validate

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/berteloot/harvest/extract"
)

// Validation is the enriched classification of one fetched page. It never
// mutates the candidate it was produced for.
type Validation struct {
	IsArticle     bool
	SchemaTypes   []string
	PublishedDate *time.Time
	Title         string
}

// articleTypes are JSON-LD @type values that mark a page as an article
// outright, regardless of body length.
var articleTypes = map[string]bool{
	"blogposting": true,
	"newsarticle": true,
	"article":     true,
	"report":      true,
	"techarticle": true,
}

// nonArticleTypes are @type values that mark a page as something else, but
// only reject it when the body is also thin: plenty of real articles sit on
// pages that misdeclare themselves.
var nonArticleTypes = map[string]bool{
	"product":           true,
	"service":           true,
	"organization":      true,
	"localbusiness":     true,
	"webpage":           true,
	"website":           true,
	"collectionpage":    true,
	"faqpage":           true,
	"aboutpage":         true,
	"contactpage":       true,
	"searchresultspage": true,
	"itemlist":          true,
}

// minArticleWords is the body length below which a non-article schema type
// is decisive, and above which the lenient fallback accepts schemaless
// pages.
const minArticleWords = 100

// Page classifies the page at pageURL from its HTML. Parse failures
// fail open: the candidate stays valid because absence of evidence is not
// evidence of absence.
func Page(pageURL, html string) Validation {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Validation{IsArticle: true}
	}

	v := Validation{
		SchemaTypes:   schemaTypes(doc),
		PublishedDate: extract.DateFromHTML(doc, pageURL),
		Title:         pageTitle(doc),
	}
	types := v.SchemaTypes
	hasDate := v.PublishedDate != nil || hasDateElement(doc)

	// Word counting prunes script/style/nav nodes, so every signal that
	// reads the full document must be collected before this point.
	words := mainContentWordCount(doc)

	for _, t := range types {
		if articleTypes[t] {
			v.IsArticle = true
			return v
		}
	}

	for _, t := range types {
		if nonArticleTypes[t] && words < minArticleWords {
			v.IsArticle = false
			return v
		}
	}

	// No decisive schema: accept on any positive signal.
	v.IsArticle = hasDate ||
		words >= minArticleWords ||
		hasSlugPath(pageURL)
	return v
}

// schemaTypes collects every lowercase @type value from the page's JSON-LD
// blocks, recursing through @graph and nested objects.
func schemaTypes(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var types []string

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		collectTypes(data, seen, &types)
	})

	return types
}

func collectTypes(node any, seen map[string]bool, types *[]string) {
	switch v := node.(type) {
	case map[string]any:
		switch t := v["@type"].(type) {
		case string:
			addType(t, seen, types)
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok {
					addType(s, seen, types)
				}
			}
		}
		for _, child := range v {
			collectTypes(child, seen, types)
		}
	case []any:
		for _, child := range v {
			collectTypes(child, seen, types)
		}
	}
}

func addType(t string, seen map[string]bool, types *[]string) {
	t = strings.ToLower(strings.TrimSpace(t))
	if t != "" && !seen[t] {
		seen[t] = true
		*types = append(*types, t)
	}
}

// mainContentWordCount counts words in the page body with chrome elements
// removed. Prefers an <article> or <main> region when one exists.
func mainContentWordCount(doc *goquery.Document) int {
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	region := doc.Find("article, main, [role=main]").First()
	if region.Length() == 0 {
		region = doc.Find("body")
	}
	return len(strings.Fields(region.Text()))
}

// hasDateElement reports an explicit date signal in the markup: a dated
// meta tag or a <time> element.
func hasDateElement(doc *goquery.Document) bool {
	if doc.Find("time").Length() > 0 {
		return true
	}
	found := false
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("property")
		if name == "" {
			name, _ = s.Attr("name")
		}
		if strings.Contains(strings.ToLower(name), "date") || strings.Contains(strings.ToLower(name), "published") {
			found = true
			return false
		}
		return true
	})
	return found
}

// hasSlugPath reports whether the URL's last path segment contains a
// hyphen, the shape of a typical post slug.
func hasSlugPath(pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	last := segments[len(segments)-1]
	return strings.Contains(last, "-")
}

// pageTitle extracts the page title with fixed precedence: og:title, then
// twitter:title, then the first substantial <h1>, then <title>.
func pageTitle(doc *goquery.Document) string {
	if t, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	if t, ok := doc.Find(`meta[name="twitter:title"]`).First().Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	h1 := strings.Join(strings.Fields(doc.Find("h1").First().Text()), " ")
	if len(h1) >= 5 {
		return h1
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
