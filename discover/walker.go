package discover

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/berteloot/harvest/extract"
	"github.com/berteloot/harvest/reader"
)

// DefaultMaxPages bounds a walk when the caller gives no page limit.
const DefaultMaxPages = 50

// maxZeroNewPages is the number of consecutive pages yielding zero new
// posts after which the walk stops. This handles both "reached the last
// page" and "stuck in a content loop".
const maxZeroNewPages = 2

// pagePatterns are the speculative next-page URL shapes, tried in order
// when a listing page has no explicit pagination link. Once one pattern
// succeeds it is remembered so later pages skip the re-probing.
var pagePatterns = []string{"?page=", "/page/", "?paged="}

var (
	queryPageRe = regexp.MustCompile(`[?&](page|paged)=(\d+)`)
	pathPageRe  = regexp.MustCompile(`/page/(\d+)`)
)

// paginationSelectors locate explicit next-page links, most specific first.
var paginationSelectors = []string{
	`a[rel="next"]`,
	`a.next`,
	`a.pagination-next`,
	`.pagination a`,
	`.pager a`,
	`.nav-links a`,
	`.page-numbers a`,
}

// Walker traverses JavaScript-driven listing pages breadth-first through a
// rendering fetcher, collecting post candidates until the page budget, the
// post budget, or a run of empty pages ends the walk.
type Walker struct {
	fetcher  reader.Fetcher
	maxPages int
	obs      WalkObserver
}

// WalkObserver receives walker metrics events. May be nil.
type WalkObserver interface {
	PagesWalked(count int)
}

// NewWalker builds a walker over the given fetcher. maxPages values < 1
// default to DefaultMaxPages.
func NewWalker(fetcher reader.Fetcher, maxPages int, obs WalkObserver) *Walker {
	if maxPages < 1 {
		maxPages = DefaultMaxPages
	}
	return &Walker{fetcher: fetcher, maxPages: maxPages, obs: obs}
}

// probe is one speculative next-page attempt with the pattern it used.
type probe struct {
	url     string
	pattern string
}

// Walk traverses listing pages starting at startURL and returns the post
// candidates found, never emitting the same post URL twice. maxPosts <= 0
// means unlimited. The walk ends at the page budget, the post budget, two
// consecutive real pages with zero new posts, or when no next page can be
// found. Speculative probes that miss do not count toward the empty-page
// stop; the walk simply moves to the next pattern or ends.
func (w *Walker) Walk(ctx context.Context, startURL string, maxPosts int) ([]Candidate, error) {
	if w.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}

	var (
		found        []Candidate
		queue        = []string{startURL}
		probes       []probe
		visited      = map[string]bool{}
		seenPosts    = map[string]bool{}
		knownPattern string
		zeroRun      = 0
		pagesFetched = 0
	)

	for pagesFetched < w.maxPages && zeroRun < maxZeroNewPages {
		if maxPosts > 0 && len(found) >= maxPosts {
			break
		}

		pageURL, fromPattern, ok := nextPage(&queue, &probes)
		if !ok {
			break
		}
		if visited[CanonicalURL(pageURL)] {
			continue
		}
		visited[CanonicalURL(pageURL)] = true

		result, err := w.fetcher.Fetch(ctx, pageURL, reader.FormatHTML)
		pagesFetched++
		if err != nil {
			log.Printf("WARN: Walker failed to fetch %s: %v", pageURL, err)
			if fromPattern == "" {
				zeroRun++
			}
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Content))
		if err != nil {
			log.Printf("WARN: Walker failed to parse %s: %v", pageURL, err)
			continue
		}

		newPosts := extractPostLinks(doc, pageURL, seenPosts)
		if len(newPosts) > 0 {
			found = append(found, newPosts...)
			zeroRun = 0
			if fromPattern != "" {
				// The speculative pattern hit: remember it and drop the
				// remaining probes for this page number.
				knownPattern = fromPattern
				probes = probes[:0]
			}
		} else {
			if fromPattern != "" {
				// Speculative miss: move on to the next pattern without
				// chaining further pages off a page that added nothing.
				continue
			}
			// A real page that only repeats known posts. Its next-page link
			// must still be followed; the zeroRun bound in the loop condition
			// is what ends the walk, after two such pages in a row.
			zeroRun++
		}

		if next := explicitNextLink(doc, pageURL, visited); next != "" {
			queue = append(queue, next)
		} else if len(queue) == 0 {
			probes = speculateNext(pageURL, knownPattern)
		}
	}

	if w.obs != nil && pagesFetched > 0 {
		w.obs.PagesWalked(pagesFetched)
	}
	log.Printf("INFO: Walker finished %s: %d posts from %d pages", startURL, len(found), pagesFetched)

	if maxPosts > 0 && len(found) > maxPosts {
		found = found[:maxPosts]
	}
	return found, nil
}

// nextPage pops the next page to visit: explicit links first, then pending
// speculative probes. The second return is the probe's pattern, empty for
// explicit links.
func nextPage(queue *[]string, probes *[]probe) (string, string, bool) {
	if len(*queue) > 0 {
		u := (*queue)[0]
		*queue = (*queue)[1:]
		return u, "", true
	}
	if len(*probes) > 0 {
		p := (*probes)[0]
		*probes = (*probes)[1:]
		return p.url, p.pattern, true
	}
	return "", "", false
}

// extractPostLinks collects same-host anchors that look like posts and have
// not been seen earlier in this walk.
func extractPostLinks(doc *goquery.Document, pageURL string, seen map[string]bool) []Candidate {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var posts []Candidate
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := resolveHref(base, href)
		if resolved == "" || !LooksLikePost(resolved) {
			return
		}

		canonical := CanonicalURL(resolved)
		if seen[canonical] {
			return
		}
		seen[canonical] = true

		title := strings.Join(strings.Fields(s.Text()), " ")
		if len(title) < 5 {
			title = TitleFromSlug(canonical)
		}

		posts = append(posts, Candidate{
			URL:           canonical,
			Title:         title,
			PublishedDate: extract.DateFromURL(canonical),
		})
	})
	return posts
}

// explicitNextLink finds an unvisited pagination link via the selector
// list, falling back to any anchor whose href carries a page-number query
// or path pattern.
func explicitNextLink(doc *goquery.Document, pageURL string, visited map[string]bool) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	for _, selector := range paginationSelectors {
		next := ""
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			resolved := resolveHref(base, href)
			if resolved == "" || visited[CanonicalURL(resolved)] {
				return true
			}
			next = resolved
			return false
		})
		if next != "" {
			return next
		}
	}

	// Pattern-based fallback: any same-host link that carries a page
	// number.
	next := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		resolved := resolveHref(base, href)
		if resolved == "" || visited[CanonicalURL(resolved)] {
			return true
		}
		if queryPageRe.MatchString(resolved) || pathPageRe.MatchString(resolved) {
			next = resolved
			return false
		}
		return true
	})
	return next
}

// resolveHref resolves href against base and keeps only same-host HTTP
// links.
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if !strings.EqualFold(resolved.Host, base.Host) {
		return ""
	}
	return resolved.String()
}

// speculateNext constructs next-page probes from the actual page number in
// the current URL (not a monotonic counter, so skipped pages are
// tolerated). With a remembered pattern only that probe is produced;
// otherwise all three patterns are queued in order.
func speculateNext(pageURL, knownPattern string) []probe {
	current := pageNumberOf(pageURL)

	if knownPattern != "" {
		return []probe{{url: applyPattern(pageURL, knownPattern, current+1), pattern: knownPattern}}
	}

	probes := make([]probe, 0, len(pagePatterns))
	for _, pattern := range pagePatterns {
		probes = append(probes, probe{url: applyPattern(pageURL, pattern, current+1), pattern: pattern})
	}
	return probes
}

// pageNumberOf parses the page number out of the current URL, defaulting to
// 1 for unnumbered listing pages.
func pageNumberOf(pageURL string) int {
	if m := queryPageRe.FindStringSubmatch(pageURL); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			return n
		}
	}
	if m := pathPageRe.FindStringSubmatch(pageURL); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 1
}

// applyPattern builds the next-page URL for one pagination pattern,
// stripping any existing page markers first.
func applyPattern(pageURL, pattern string, page int) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	query := parsed.Query()
	query.Del("page")
	query.Del("paged")
	parsed.Path = pathPageRe.ReplaceAllString(parsed.Path, "")
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	switch pattern {
	case "?page=":
		query.Set("page", strconv.Itoa(page))
	case "?paged=":
		query.Set("paged", strconv.Itoa(page))
	case "/page/":
		parsed.Path = parsed.Path + "/page/" + strconv.Itoa(page)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
