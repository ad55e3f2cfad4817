package extract

import (
	"regexp"
	"strings"
)

var (
	atxHeading    = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*\s*$`)
	setextUnder   = regexp.MustCompile(`^(={3,}|-{3,})\s*$`)
	bareLinkLine  = regexp.MustCompile(`^\s*[-*]?\s*\[[^\]]*\]\([^)]*\)\s*$`)
	trackingPixel = regexp.MustCompile(`(?i)^\s*!\[[^\]]*\]\([^)]*(pixel|track|beacon|counter|1x1|impression)[^)]*\)\s*$`)
	copyrightLine = regexp.MustCompile(`(?i)(©|\(c\)\s|copyright)\s*.{0,40}\d{4}|all rights reserved`)
	footerHeading = regexp.MustCompile(`(?i)^#{0,6}\s*(footer|subscribe|newsletter|related (posts|articles|stories)|more from|you (may|might) also like|follow us|share this|popular posts|recent posts|leave a (comment|reply)|comments)\b`)
	navNoiseText  = regexp.MustCompile(`(?i)(skip to (main )?content|main navigation|primary menu|cookie (consent|policy|settings)|accept (all )?cookies|sign in|sign up|log ?in|subscribe now|table of contents)`)
	navLinkText   = regexp.MustCompile(`(?i)^\s*[-*]?\s*\[(home|about( us)?|contact( us)?|blog|menu|search|privacy policy|terms( of (use|service))?|careers|pricing|products?|services|faq|sitemap)\]\([^)]*\)\s*$`)
)

// minTitleLength is the shortest heading treated as a plausible article
// title; shorter headings are usually section labels or nav items.
const minTitleLength = 20

// footerScanOffset is how many lines past the article start a footer
// indicator must appear before it is trusted as the article end.
const footerScanOffset = 10

// Clean strips navigation and footer noise from extracted markdown. It
// locates the article start at the first heading-like line whose text is
// long enough and not navigational, and the article end at the first footer
// indicator well after the start. When no confident start is found, only
// the most obvious noise lines are removed rather than discarding content.
func Clean(markdown string) string {
	lines := strings.Split(markdown, "\n")

	start := findArticleStart(lines)
	if start < 0 {
		return joinClean(stripNoiseLines(lines))
	}

	end := findArticleEnd(lines, start)
	return joinClean(stripNoiseLines(lines[start:end]))
}

// findArticleStart returns the index of the first heading-like line (ATX or
// setext) whose text exceeds minTitleLength and does not look navigational,
// or -1 when none is found.
func findArticleStart(lines []string) int {
	for i := range lines {
		text, ok := headingText(lines, i)
		if !ok {
			continue
		}
		if len(text) > minTitleLength && !navNoiseText.MatchString(text) {
			return i
		}
	}
	return -1
}

// headingText returns the text of the heading beginning at index i, if any.
// Both ATX (# Title) and setext (Title\n=====) forms are recognized.
func headingText(lines []string, i int) (string, bool) {
	if m := atxHeading.FindStringSubmatch(lines[i]); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	line := strings.TrimSpace(lines[i])
	if line != "" && i+1 < len(lines) && setextUnder.MatchString(lines[i+1]) {
		return line, true
	}
	return "", false
}

// findArticleEnd scans forward from the article start for footer
// indicators: a footer-like heading, a copyright line, or a dense run of
// bare link lines. Indicators too close to the start are ignored since real
// articles can open with a short link list. Returns len(lines) when no
// confident boundary exists.
func findArticleEnd(lines []string, start int) int {
	linkRun := 0
	for j := start + 1; j < len(lines); j++ {
		if j < start+footerScanOffset {
			continue
		}

		line := lines[j]
		if footerHeading.MatchString(strings.TrimSpace(line)) || copyrightLine.MatchString(line) {
			return j
		}

		if bareLinkLine.MatchString(line) {
			linkRun++
			if linkRun >= 4 {
				return j - linkRun + 1
			}
		} else if strings.TrimSpace(line) != "" {
			linkRun = 0
		}
	}
	return len(lines)
}

// stripNoiseLines drops tracking pixels and bare navigation links.
func stripNoiseLines(lines []string) []string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if trackingPixel.MatchString(line) || navLinkText.MatchString(line) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && len(trimmed) < 60 && navNoiseText.MatchString(trimmed) && !strings.Contains(trimmed, " the ") {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// joinClean reassembles lines, collapsing runs of three or more blank lines
// left behind by stripped noise.
func joinClean(lines []string) string {
	var b strings.Builder
	blanks := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blanks++
			if blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
