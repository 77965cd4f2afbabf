package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/domain-intel/internal/model"
)

type techSignature struct {
	name    string
	markers []string
}

// Markers are matched against the lowercased markup.
var techSignatures = []techSignature{
	{"WordPress", []string{"wp-content/", "wp-includes/"}},
	{"Shopify", []string{"cdn.shopify.com", "shopify.theme"}},
	{"Wix", []string{"static.wixstatic.com", "x-wix-"}},
	{"Squarespace", []string{"static1.squarespace.com", "squarespace-cdn"}},
	{"Drupal", []string{"drupal-settings-json", "/sites/default/files/"}},
	{"Joomla", []string{"/media/jui/", "/components/com_"}},
	{"Webflow", []string{"data-wf-page", "webflow.js"}},
	{"Next.js", []string{"__next_data__", "/_next/static/"}},
	{"Nuxt", []string{"window.__nuxt__", "/_nuxt/"}},
	{"React", []string{"data-reactroot", "react-dom"}},
	{"Vue.js", []string{"data-v-app", "vue.global", "vue.min.js"}},
	{"Angular", []string{"ng-version=", "ng-app"}},
	{"jQuery", []string{"jquery.min.js", "jquery.js", "/jquery/"}},
	{"Bootstrap", []string{"bootstrap.min.css", "bootstrap.min.js", "bootstrap.bundle"}},
	{"Tailwind CSS", []string{"tailwindcss", "cdn.tailwindcss.com"}},
	{"Google Analytics", []string{"google-analytics.com/analytics.js", "gtag('config'", "gtag(\"config\""}},
	{"Google Tag Manager", []string{"googletagmanager.com/gtm.js", "googletagmanager.com/ns.html"}},
	{"HubSpot", []string{"js.hs-scripts.com", "js.hsforms.net"}},
	{"Cloudflare", []string{"cdnjs.cloudflare.com", "static.cloudflareinsights.com"}},
	{"Stripe", []string{"js.stripe.com"}},
	{"Intercom", []string{"widget.intercom.io", "intercomsettings"}},
	{"Hotjar", []string{"static.hotjar.com"}},
}

var (
	apiPathMarkers = []string{"/api/", "/graphql", "/wp-json/", "/rest/", "/v1/", "/v2/"}
	fetchCallRe    = regexp.MustCompile("(?:fetch|axios\\.(?:get|post|put|patch|delete)|\\$\\.(?:get|post|ajax))\\(\\s*[\"'`]([^\"'`\\s]+)[\"'`]")
	apiLiteralRe   = regexp.MustCompile("[\"'`]((?:https?://[^\"'`\\s]+)?/(?:api|graphql|wp-json)(?:/[^\"'`\\s]*)?)[\"'`]")
	versionTailRe  = regexp.MustCompile(`\s+v?\d[\w.\-]*$`)
)

var knownMeta = map[string]bool{
	"description": true, "keywords": true, "author": true, "generator": true,
	"robots": true, "viewport": true, "charset": true, "theme-color": true,
}

// ExtractMetadata reads document metadata, structured data, technology
// signatures and API hints.
func ExtractMetadata(markup, sourceURL string) (model.MetadataData, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return model.MetadataData{}, err
	}
	pageURL := parseBase(sourceURL)

	out := model.MetadataData{
		Title:       collapse(doc.Find("title").First().Text()),
		Description: metaName(doc, "description"),
		Author:      metaName(doc, "author"),
		Generator:   metaName(doc, "generator"),
		Robots:      metaName(doc, "robots"),
		Language:    strings.TrimSpace(doc.Find("html").AttrOr("lang", "")),
		Canonical:   resolve(pageURL, doc.Find(`link[rel="canonical"]`).AttrOr("href", "")),
		OpenGraph:   metaMap(doc, "og:"),
		TwitterCard: metaMap(doc, "twitter:"),
		Custom:      make(map[string]string),
	}
	if kw := metaName(doc, "keywords"); kw != "" {
		set := newStringSet()
		for _, k := range strings.Split(kw, ",") {
			set.Add(strings.TrimSpace(k))
		}
		out.Keywords = set.Items()
	}

	for _, block := range jsonLD(doc) {
		switch t := block.(type) {
		case map[string]any:
			out.StructuredData = append(out.StructuredData, t)
		case []any:
			for _, item := range t {
				if m, ok := item.(map[string]any); ok {
					out.StructuredData = append(out.StructuredData, m)
				}
			}
		}
	}

	itemTypes := newStringSet()
	doc.Find("[itemtype]").Each(func(_ int, s *goquery.Selection) {
		itemTypes.Add(strings.TrimSpace(s.AttrOr("itemtype", "")))
	})
	out.Microdata = itemTypes.Items()

	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", "")))
		if name == "" || knownMeta[name] || strings.HasPrefix(name, "og:") || strings.HasPrefix(name, "twitter:") {
			return
		}
		if content := strings.TrimSpace(s.AttrOr("content", "")); content != "" {
			out.Custom[name] = content
		}
	})
	if len(out.Custom) == 0 {
		out.Custom = nil
	}

	out.Technologies = DetectTechnologies(markup, out.Generator)
	out.APIHints = apiHints(doc, pageURL)
	return out, nil
}

func metaName(doc *goquery.Document, name string) string {
	var v string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), name) {
			v = strings.TrimSpace(s.AttrOr("content", ""))
			return v == ""
		}
		return true
	})
	return v
}

// DetectTechnologies matches markup against known signatures. A generator
// meta value is added with its version stripped.
func DetectTechnologies(markup, generator string) []string {
	lower := strings.ToLower(markup)
	found := newStringSet()
	for _, sig := range techSignatures {
		for _, m := range sig.markers {
			if strings.Contains(lower, m) {
				found.Add(sig.name)
				break
			}
		}
	}
	if generator != "" {
		name := versionTailRe.ReplaceAllString(strings.TrimSpace(generator), "")
		for _, sig := range techSignatures {
			if strings.HasPrefix(strings.ToLower(name), strings.ToLower(sig.name)) {
				name = sig.name
				break
			}
		}
		found.Add(name)
	}
	return found.Items()
}

func apiHints(doc *goquery.Document, pageURL *url.URL) []string {
	hints := newURLSet()
	add := func(raw string) {
		abs := resolve(pageURL, raw)
		if abs == "" {
			return
		}
		u, err := url.Parse(abs)
		if err != nil {
			return
		}
		p := strings.ToLower(u.Path)
		if containsAny(p, apiPathMarkers) || strings.HasSuffix(p, ".json") {
			hints.Add(abs)
		}
	}

	doc.Find("a[href], link[href]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""))
	})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})
	doc.Find("form[action]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("action", ""))
	})
	doc.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
		code := s.Text()
		for _, m := range fetchCallRe.FindAllStringSubmatch(code, -1) {
			hints.Add(resolve(pageURL, m[1]))
		}
		for _, m := range apiLiteralRe.FindAllStringSubmatch(code, -1) {
			hints.Add(resolve(pageURL, m[1]))
		}
	})
	return hints.Items()
}
