package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berteloot/harvest/reader"
)

// memoryStore is an in-memory fingerprint store for pipeline tests.
type memoryStore struct {
	fingerprints map[string]map[string]uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{fingerprints: make(map[string]map[string]uuid.UUID)}
}

func (m *memoryStore) ListFingerprints(_ context.Context, scope string) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID, len(m.fingerprints[scope]))
	for url, id := range m.fingerprints[scope] {
		out[url] = id
	}
	return out, nil
}

func (m *memoryStore) Register(_ context.Context, scope, url string) (uuid.UUID, error) {
	if m.fingerprints[scope] == nil {
		m.fingerprints[scope] = make(map[string]uuid.UUID)
	}
	if id, ok := m.fingerprints[scope][url]; ok {
		return id, nil
	}
	id := uuid.New()
	m.fingerprints[scope][url] = id
	return id, nil
}

func (m *memoryStore) Close() error { return nil }

// urlFetcher serves scripted results keyed by URL.
type urlFetcher struct {
	results map[string]*reader.Result
	errs    map[string]error
}

func (f *urlFetcher) Name() string { return "scripted" }

func (f *urlFetcher) Fetch(_ context.Context, pageURL string, _ reader.Format) (*reader.Result, error) {
	if err, ok := f.errs[pageURL]; ok {
		return nil, err
	}
	if result, ok := f.results[pageURL]; ok {
		copied := *result
		return &copied, nil
	}
	return nil, &reader.ContentUnavailableError{Provider: f.Name(), StatusCode: 404, Reason: "not scripted"}
}

func fastClient(t *testing.T, fetcher reader.Fetcher) *reader.Client {
	t.Helper()
	client, err := reader.NewClient(fetcher, reader.ClientOptions{
		MinDelay: time.Millisecond,
		Retry:    reader.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	require.NoError(t, err)
	return client
}

func articleHTML(title string, bodyWords int) string {
	body := ""
	for i := 0; i < bodyWords; i++ {
		body += fmt.Sprintf("word%d ", i)
	}
	return fmt.Sprintf(`<html><head><meta property="og:title" content="%s"></head>
		<body><time datetime="2024-02-01">Feb 1</time><article><p>%s</p></article></body></html>`, title, body)
}

func TestDiscoverFromSitemapWithValidation(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			fmt.Fprintf(w, `<?xml version="1.0"?><urlset>
				<url><loc>%s/blog/a-real-article</loc></url>
				<url><loc>%s/blog/another-real-article</loc></url>
				<url><loc>%s/blog/product-landing-thing</loc></url>
			</urlset>`, server.URL, server.URL, server.URL)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	validation := &urlFetcher{results: map[string]*reader.Result{
		server.URL + "/blog/a-real-article":       {Content: articleHTML("A Real Article", 200)},
		server.URL + "/blog/another-real-article": {Content: articleHTML("Another Real Article", 200)},
		server.URL + "/blog/product-landing-thing": {Content: `<html><head>
			<script type="application/ld+json">{"@type":"Product"}</script>
			</head><body><p>Buy now.</p></body></html>`},
	}}

	pipeline, err := New(Config{Store: newMemoryStore(), ValidationFetcher: validation})
	require.NoError(t, err)

	result, err := pipeline.Discover(context.Background(), server.URL, DiscoverOptions{})
	require.NoError(t, err)

	assert.Equal(t, "sitemap", result.Method)
	assert.False(t, result.FallbackUsed)
	require.Len(t, result.URLs, 2, "the product page is dropped by validation")
	assert.Equal(t, "A Real Article", result.URLs[0].Title, "validation enriches titles")
	require.NotNil(t, result.URLs[0].PublishedDate)
}

func TestDiscoverKeepsCandidatesWhenValidationFetchFails(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			fmt.Fprintf(w, `<?xml version="1.0"?><urlset>
				<url><loc>%s/blog/unreachable-article</loc></url>
			</urlset>`, server.URL)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	// Every validation fetch fails; candidates must survive.
	validation := &urlFetcher{}

	pipeline, err := New(Config{Store: newMemoryStore(), ValidationFetcher: validation})
	require.NoError(t, err)

	result, err := pipeline.Discover(context.Background(), server.URL, DiscoverOptions{})
	require.NoError(t, err)
	assert.Len(t, result.URLs, 1)
}

func TestDiscoverDateRangeFilter(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			fmt.Fprintf(w, `<?xml version="1.0"?><urlset>
				<url><loc>%s/blog/old-article</loc><lastmod>2022-01-10</lastmod></url>
				<url><loc>%s/blog/recent-article</loc><lastmod>2024-06-15</lastmod></url>
				<url><loc>%s/blog/undated-article</loc></url>
			</urlset>`, server.URL, server.URL, server.URL)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	pipeline, err := New(Config{Store: newMemoryStore()})
	require.NoError(t, err)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := pipeline.Discover(context.Background(), server.URL, DiscoverOptions{
		Since:          &since,
		SkipValidation: true,
	})
	require.NoError(t, err)

	// The old article is filtered out; the undated one is kept.
	require.Len(t, result.URLs, 2)
	assert.Equal(t, server.URL+"/blog/recent-article", result.URLs[0].URL)
	assert.Equal(t, server.URL+"/blog/undated-article", result.URLs[1].URL)
}

func TestCheckDuplicatesPartitionsCandidates(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	_, err := store.Register(ctx, "lib", "https://example.com/blog/seen-before")
	require.NoError(t, err)

	pipeline, err := New(Config{Store: store})
	require.NoError(t, err)

	candidates := []DiscoveredURL{
		{URL: "https://example.com/blog/seen-before"},
		{URL: "https://example.com/blog/brand-new"},
	}
	result, err := pipeline.CheckDuplicates(ctx, candidates, "lib")
	require.NoError(t, err)

	require.Len(t, result.All, 2)
	assert.True(t, result.All[0].IsDuplicate)
	require.NotNil(t, result.All[0].ExistingFingerprintID)
	assert.False(t, result.All[1].IsDuplicate)
	assert.Len(t, result.New, 1)
	assert.Len(t, result.Duplicates, 1)
}

func TestScrapeSelectedIsolatesFailures(t *testing.T) {
	urls := []string{
		"https://example.com/blog/post-one",
		"https://example.com/blog/post-two",
		"https://example.com/blog/post-three",
		"https://example.com/blog/post-four",
		"https://example.com/blog/post-five",
	}

	fetcher := &urlFetcher{
		results: map[string]*reader.Result{},
		errs: map[string]error{
			urls[2]: &reader.ContentUnavailableError{Provider: "scripted", StatusCode: 404, Reason: "removed"},
		},
	}
	for i, u := range urls {
		if i == 2 {
			continue
		}
		fetcher.results[u] = &reader.Result{
			Content:  fmt.Sprintf("# A Long Enough Post Title Number %d\n\nPublished June 1, 2024\n\nBody paragraph.", i+1),
			Metadata: reader.Metadata{Title: fmt.Sprintf("Post %d", i+1), CreditsUsed: 1},
		}
	}

	pipeline, err := New(Config{Store: newMemoryStore(), Reader: fastClient(t, fetcher)})
	require.NoError(t, err)

	var progress []int
	posts, err := pipeline.ScrapeSelected(context.Background(), urls, func(index, total int, _ string) {
		progress = append(progress, index)
		assert.Equal(t, 5, total)
	})
	require.NoError(t, err)

	// Output matches input in length and order; the one failure is isolated.
	require.Len(t, posts, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)
	for i, post := range posts {
		assert.Equal(t, urls[i], post.URL)
		if i == 2 {
			assert.False(t, post.Success)
			assert.NotEmpty(t, post.Error)
			continue
		}
		assert.True(t, post.Success)
		assert.Contains(t, post.Content, "Body paragraph.")
		require.NotNil(t, post.PublishedDate, "post %d", i)
		assert.Equal(t, "2024-06-01", post.PublishedDate.Format("2006-01-02"))
	}
}

func TestScrapeSelectedRequiresReader(t *testing.T) {
	pipeline, err := New(Config{Store: newMemoryStore()})
	require.NoError(t, err)

	_, err = pipeline.ScrapeSelected(context.Background(), []string{"https://example.com/a-post"}, nil)
	assert.ErrorIs(t, err, reader.ErrConfiguration)
}

func TestRegisterIngestedSkipsFailures(t *testing.T) {
	store := newMemoryStore()
	pipeline, err := New(Config{Store: store})
	require.NoError(t, err)

	ctx := context.Background()
	posts := []ScrapedPost{
		{URL: "https://example.com/blog/good-post", Success: true},
		{URL: "https://example.com/blog/bad-post", Success: false, Error: "fetch failed"},
	}
	require.NoError(t, pipeline.RegisterIngested(ctx, "lib", posts))

	fingerprints, err := store.ListFingerprints(ctx, "lib")
	require.NoError(t, err)
	assert.Len(t, fingerprints, 1)
	assert.Contains(t, fingerprints, "https://example.com/blog/good-post")
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
