package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher_Exclude(t *testing.T) {
	t.Parallel()
	m := NewPathMatcher(nil, []string{"/blog/*", "/news/*", "/*.pdf", "/careers/*"})

	tests := []struct {
		name    string
		url     string
		allowed bool
	}{
		{"blog post", "https://acme.com/blog/post1", false},
		{"blog root", "https://acme.com/blog", false},
		{"blog deep path", "https://acme.com/blog/2024/01/post", false},
		{"news article", "https://acme.com/news/article", false},
		{"pdf file", "https://acme.com/report.pdf", false},
		{"about page", "https://acme.com/about", true},
		{"homepage", "https://acme.com/", true},
		{"bare host", "https://acme.com", true},
		{"nested pdf in path", "https://acme.com/docs/report.pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.allowed, m.Allows(tt.url))
		})
	}
}

func TestPathMatcher_Include(t *testing.T) {
	m := NewPathMatcher([]string{"/products/*", "docs.acme.com"}, nil)

	assert.True(t, m.Allows("https://acme.com/products/anvil"))
	assert.True(t, m.Allows("https://docs.acme.com/anything"))
	assert.False(t, m.Allows("https://acme.com/about"))
}

func TestPathMatcher_ExcludeWins(t *testing.T) {
	m := NewPathMatcher([]string{"*.acme.com"}, []string{"admin.acme.com"})

	assert.True(t, m.Allows("https://acme.com/"))
	assert.True(t, m.Allows("https://www.acme.com/"))
	assert.False(t, m.Allows("https://admin.acme.com/"))
	assert.False(t, m.Allows("https://notacme.com/"))
}

func TestPathMatcher_CaseInsensitive(t *testing.T) {
	m := NewPathMatcher(nil, []string{"/Blog/*"})

	assert.False(t, m.Allows("https://acme.com/blog/post"))
	assert.False(t, m.Allows("https://acme.com/BLOG/POST"))
}

func TestPathMatcher_InvalidURL(t *testing.T) {
	m := NewPathMatcher(nil, nil)

	assert.False(t, m.Allows("://invalid"))
	assert.False(t, m.Allows("/relative/only"))
}
