package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMetadata(t *testing.T) {
	markup := `<html lang="en-US"><head>
<title>Acme Corp</title>
<meta name="description" content="Acme builds tools.">
<meta name="keywords" content="tools, anvils, tools">
<meta name="generator" content="WordPress 6.4.2">
<meta name="application-name" content="Acme">
<meta name="theme-color" content="#fff">
<meta property="og:title" content="Acme OG">
<link rel="canonical" href="/home">
<link rel="stylesheet" href="/wp-content/themes/acme/style.css">
<script type="application/ld+json">{"@type":"Organization","name":"Acme"}</script>
<script type="application/ld+json">[{"@type":"WebSite"},{"@type":"WebPage"}]</script>
<script type="application/ld+json">{not json</script>
</head><body>
<div itemscope itemtype="https://schema.org/Product"></div>
<a href="/wp-json/wp/v2/posts">API</a>
<script>fetch("/api/v1/products").then(r => r.json())</script>
</body></html>`

	m, err := ExtractMetadata(markup, "https://acme.test/")
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", m.Title)
	assert.Equal(t, "Acme builds tools.", m.Description)
	assert.Equal(t, []string{"tools", "anvils"}, m.Keywords)
	assert.Equal(t, "https://acme.test/home", m.Canonical)
	assert.Equal(t, "en-US", m.Language)
	assert.Equal(t, "WordPress 6.4.2", m.Generator)
	assert.Equal(t, "Acme OG", m.OpenGraph["title"])
	assert.Len(t, m.StructuredData, 3)
	assert.Equal(t, []string{"https://schema.org/Product"}, m.Microdata)
	assert.Equal(t, map[string]string{"application-name": "Acme"}, m.Custom)
	assert.Equal(t, []string{"WordPress"}, m.Technologies)
	assert.Contains(t, m.APIHints, "https://acme.test/wp-json/wp/v2/posts")
	assert.Contains(t, m.APIHints, "https://acme.test/api/v1/products")
}

func TestDetectTechnologies(t *testing.T) {
	tests := []struct {
		name      string
		markup    string
		generator string
		want      []string
	}{
		{"shopify", `<script src="https://cdn.shopify.com/s/app.js"></script>`, "", []string{"Shopify"}},
		{"next and react", `<script id="__NEXT_DATA__"></script><script src="/_next/static/x.js"></script><div data-reactroot></div>`, "", []string{"Next.js", "React"}},
		{"generator only", `<p>plain</p>`, "Hugo 0.120.0", []string{"Hugo"}},
		{"none", `<p>plain</p>`, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTechnologies(tt.markup, tt.generator))
		})
	}
}
