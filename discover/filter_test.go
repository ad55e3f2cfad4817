package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikePost(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		// Slugged post URLs are accepted.
		{"https://example.com/blog/how-we-scaled-our-pipeline", true},
		{"https://example.com/2024/03/a-post-about-testing", true},
		{"https://example.com/announcing-our-new-library", true},

		// Sections, archives and pagination are rejected.
		{"https://example.com/category/engineering", false},
		{"https://example.com/tag/golang", false},
		{"https://example.com/author/jane-doe", false},
		{"https://example.com/blog/page/3", false},
		{"https://example.com/blog/page-2", false},
		{"https://example.com/archive", false},

		// Feeds and assets are rejected.
		{"https://example.com/feed", false},
		{"https://example.com/sitemap.xml", false},
		{"https://example.com/images/header.png", false},

		// Bare site pages are rejected.
		{"https://example.com/about", false},
		{"https://example.com/pricing", false},
		{"https://example.com/", false},

		// Short hyphen-free trailing segments look like sections.
		{"https://example.com/blog/news", false},

		{"not a url ://", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LooksLikePost(tt.url), "url: %s", tt.url)
	}
}

func TestTitleFromSlug(t *testing.T) {
	assert.Equal(t, "How We Scaled Our Pipeline",
		TitleFromSlug("https://example.com/blog/how-we-scaled-our-pipeline"))
	assert.Equal(t, "Mixed Case Slug",
		TitleFromSlug("https://example.com/mixed_case-slug"))
	assert.Equal(t, "A Post",
		TitleFromSlug("https://example.com/a-post.html"))
	assert.Equal(t, "Été À Paris",
		TitleFromSlug("https://example.com/blog/été-à-paris"))
}

func TestCanonicalURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a-post",
		CanonicalURL("HTTPS://Example.COM/a-post/#comments"))
	assert.Equal(t, "https://example.com/a-post?page=2",
		CanonicalURL("https://example.com/a-post?page=2"))
}
