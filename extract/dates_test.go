package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestDateFromHTMLPrecedence(t *testing.T) {
	// The meta tag wins over JSON-LD, visible text and the URL path.
	html := `<html><head>
		<meta property="article:published_time" content="2024-03-10T08:00:00Z">
		<script type="application/ld+json">{"@type":"BlogPosting","datePublished":"2023-01-01"}</script>
	</head><body><p>Published January 5, 2022</p></body></html>`

	got := DateFromHTML(docFrom(t, html), "https://example.com/2021/06/old-path")
	require.NotNil(t, got)
	assert.Equal(t, "2024-03-10", got.Format("2006-01-02"))
}

func TestDateFromHTMLJSONLD(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">
		{"@graph":[{"@type":"WebSite"},{"@type":"BlogPosting","datePublished":"2023-07-04T12:00:00Z"}]}
		</script>
	</head><body></body></html>`

	got := DateFromHTML(docFrom(t, html), "https://example.com/a-post")
	require.NotNil(t, got)
	assert.Equal(t, "2023-07-04", got.Format("2006-01-02"))
}

func TestDateFromHTMLTimeElement(t *testing.T) {
	html := `<html><body><time datetime="2022-11-30">Nov 30</time></body></html>`
	got := DateFromHTML(docFrom(t, html), "https://example.com/a-post")
	require.NotNil(t, got)
	assert.Equal(t, "2022-11-30", got.Format("2006-01-02"))
}

func TestDateFromHTMLVisibleText(t *testing.T) {
	html := `<html><body><p>Posted on March 7, 2023 by the editors.</p></body></html>`
	got := DateFromHTML(docFrom(t, html), "https://example.com/a-post")
	require.NotNil(t, got)
	assert.Equal(t, "2023-03-07", got.Format("2006-01-02"))
}

func TestDateFromHTMLIgnoresDeepText(t *testing.T) {
	// A date buried far down the page is more likely a comment timestamp.
	filler := strings.Repeat("filler words that push the date past the window ", 40)
	html := `<html><body><p>` + filler + `January 5, 2020</p></body></html>`

	got := DateFromHTML(docFrom(t, html), "https://example.com/undated")
	assert.Nil(t, got)
}

func TestDateFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/2024/01/15/a-post", "2024-01-15"},
		{"https://example.com/2024/01/a-post", "2024-01-01"},
		{"https://example.com/blog/2023-06-20-release-notes", "2023-06-20"},
	}
	for _, tt := range tests {
		got := DateFromURL(tt.url)
		require.NotNil(t, got, "url: %s", tt.url)
		assert.Equal(t, tt.want, got.Format("2006-01-02"), "url: %s", tt.url)
	}

	assert.Nil(t, DateFromURL("https://example.com/blog/a-post"))
	assert.Nil(t, DateFromURL("https://example.com/2024/13/bad-month"))
}

func TestParseDateRejectsImplausibleDates(t *testing.T) {
	future := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	assert.Nil(t, ParseDate(future), "future dates are noise")
	assert.Nil(t, ParseDate("1987-05-01"), "pre-1990 dates are noise")
	assert.Nil(t, ParseDate("not a date"))
	assert.Nil(t, ParseDate(""))

	got := ParseDate("March 7, 2023")
	require.NotNil(t, got)
	assert.Equal(t, "2023-03-07", got.Format("2006-01-02"))
}

func TestDateFromContent(t *testing.T) {
	markdown := "# A Post Title\n\nPublished 12 June 2023\n\nBody text."
	got := DateFromContent(markdown, "https://example.com/a-post")
	require.NotNil(t, got)
	assert.Equal(t, "2023-06-12", got.Format("2006-01-02"))

	// Falls back to the URL when the text carries no date.
	got = DateFromContent("No dates here.", "https://example.com/2022/09/08/a-post")
	require.NotNil(t, got)
	assert.Equal(t, "2022-09-08", got.Format("2006-01-02"))
}
