package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sitemapBody = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/blog/first-real-post</loc><lastmod>2024-01-15</lastmod></url>
  <url><loc>%s/blog/second-real-post</loc><lastmod>2024-02-20</lastmod></url>
  <url><loc>%s/blog/third-real-post</loc></url>
  <url><loc>%s/category/engineering</loc></url>
  <url><loc>%s/about</loc></url>
  <url><loc>%s/blog/page/2</loc></url>
</urlset>`

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>%s</link>
    <item>
      <title>A Feed Post</title>
      <link>%s/blog/a-feed-post</link>
      <pubDate>Mon, 15 Jan 2024 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Another Feed Post</title>
      <link>%s/blog/another-feed-post</link>
    </item>
  </channel>
</rss>`

func TestChainPrefersSitemap(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			u := server.URL
			fmt.Fprintf(w, sitemapBody, u, u, u, u, u, u)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	chain := NewChain(server.Client(), nil, nil)
	result, err := chain.Discover(context.Background(), server.URL, 0)
	require.NoError(t, err)

	assert.Equal(t, "sitemap", result.Method)
	assert.Equal(t, 0, result.CreditsUsed)
	assert.False(t, result.FallbackRequired)

	// Only the three slugged post URLs survive the filter.
	require.Len(t, result.URLs, 3)
	assert.Equal(t, server.URL+"/blog/first-real-post", result.URLs[0].URL)
	assert.Equal(t, server.URL+"/blog/second-real-post", result.URLs[1].URL)
	assert.Equal(t, server.URL+"/blog/third-real-post", result.URLs[2].URL)

	// lastmod carries through as the publish date.
	require.NotNil(t, result.URLs[0].PublishedDate)
	assert.Equal(t, "2024-01-15", result.URLs[0].PublishedDate.Format("2006-01-02"))
	assert.Nil(t, result.URLs[2].PublishedDate)
}

func TestChainFallsBackToFeed(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed" {
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, feedBody, server.URL, server.URL, server.URL)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	chain := NewChain(server.Client(), nil, nil)
	result, err := chain.Discover(context.Background(), server.URL, 0)
	require.NoError(t, err)

	assert.Equal(t, "rss", result.Method)
	require.Len(t, result.URLs, 2)
	assert.Equal(t, "A Feed Post", result.URLs[0].Title)
	require.NotNil(t, result.URLs[0].PublishedDate)
	assert.Nil(t, result.URLs[1].PublishedDate)
}

func TestChainRequiresFallbackWhenNothingFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	chain := NewChain(server.Client(), nil, nil)
	result, err := chain.Discover(context.Background(), server.URL, 0)
	require.NoError(t, err)

	assert.True(t, result.FallbackRequired)
	assert.Empty(t, result.URLs)
}

// fakeMapper records whether the paid map endpoint was consulted.
type fakeMapper struct {
	called bool
	urls   []string
}

func (m *fakeMapper) Map(_ context.Context, _ string, _ int) ([]string, int, error) {
	m.called = true
	return m.urls, 1, nil
}

func TestChainSkipsPaidMapWhenFreeStrategyYields(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			// A weak result (below the strong threshold) must still beat
			// spending credits on a map call.
			fmt.Fprintf(w, `<?xml version="1.0"?><urlset><url><loc>%s/blog/only-post-here</loc></url></urlset>`, server.URL)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	mapper := &fakeMapper{urls: []string{server.URL + "/blog/mapped-post"}}
	chain := NewChain(server.Client(), mapper, nil)
	result, err := chain.Discover(context.Background(), server.URL, 0)
	require.NoError(t, err)

	assert.Equal(t, "sitemap", result.Method)
	assert.False(t, mapper.called)
	assert.Equal(t, 0, result.CreditsUsed)
}

func TestChainUsesPaidMapAsLastResort(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	mapper := &fakeMapper{urls: []string{
		server.URL + "/blog/mapped-post-one",
		server.URL + "/blog/mapped-post-two",
		server.URL + "/category/noise",
	}}
	chain := NewChain(server.Client(), mapper, nil)
	result, err := chain.Discover(context.Background(), server.URL, 0)
	require.NoError(t, err)

	assert.True(t, mapper.called)
	assert.Equal(t, "map", result.Method)
	assert.Equal(t, 1, result.CreditsUsed)
	require.Len(t, result.URLs, 2)
}
