package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

var spaceRe = regexp.MustCompile(`\s+`)

// blockElements get a trailing space so adjacent blocks do not run together
// when flattened to text.
const blockElements = "p, div, br, li, dd, dt, h1, h2, h3, h4, h5, h6, td, th, tr, " +
	"section, article, header, footer, address, nav, aside, label, button, option, blockquote"

// newDocument parses markup leniently. Only a reader failure is reported;
// broken markup still yields a document.
func newDocument(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse markup")
	}
	return doc, nil
}

// parseBase returns the source URL or nil when it is absent or unusable.
func parseBase(sourceURL string) *url.URL {
	if sourceURL == "" {
		return nil
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// resolve makes href absolute against base. Non-http(s) results are dropped.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// visibleText returns the document's text without script and style bodies.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	return textOf(body)
}

// textOf flattens a selection to whitespace-collapsed text, keeping block
// boundaries as spaces. The selection itself is left untouched.
func textOf(s *goquery.Selection) string {
	c := s.Clone()
	c.Find("script, style, noscript, template").Remove()
	c.Find(blockElements).AfterHtml(" ")
	return collapse(c.Text())
}

// jsonLD decodes every application/ld+json block, skipping invalid ones.
func jsonLD(doc *goquery.Document) []any {
	var out []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return
		}
		out = append(out, v)
	})
	return out
}

// walkLD visits every object nested anywhere inside v.
func walkLD(v any, fn func(map[string]any)) {
	switch t := v.(type) {
	case map[string]any:
		fn(t)
		for _, child := range t {
			walkLD(child, fn)
		}
	case []any:
		for _, child := range t {
			walkLD(child, fn)
		}
	}
}

// ldType reports whether obj's @type equals (or contains) name.
func ldType(obj map[string]any, name string) bool {
	switch t := obj["@type"].(type) {
	case string:
		return strings.EqualFold(t, name)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, name) {
				return true
			}
		}
	}
	return false
}

// ldStrings returns the string values of obj[key], whether scalar or array.
func ldStrings(obj map[string]any, key string) []string {
	switch t := obj[key].(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, v := range t {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case map[string]any:
		if s, ok := t["name"].(string); ok {
			return []string{strings.TrimSpace(s)}
		}
	}
	return nil
}

func ldString(obj map[string]any, key string) string {
	if vals := ldStrings(obj, key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// itemValue reads a microdata property value the way browsers do.
func itemValue(s *goquery.Selection) string {
	if v, ok := s.Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	switch goquery.NodeName(s) {
	case "a", "link":
		return strings.TrimSpace(s.AttrOr("href", ""))
	case "meta":
		return strings.TrimSpace(s.AttrOr("content", ""))
	case "time":
		if v, ok := s.Attr("datetime"); ok {
			return strings.TrimSpace(v)
		}
	}
	return collapse(s.Text())
}

// stringSet preserves insertion order while dropping duplicates.
type stringSet struct {
	seen  map[string]struct{}
	items []string
	fold  bool
}

// newStringSet compares text case-insensitively.
func newStringSet(initial ...string) *stringSet {
	s := &stringSet{seen: make(map[string]struct{}), fold: true}
	for _, v := range initial {
		s.Add(v)
	}
	return s
}

// newURLSet compares exactly; URL paths are case-sensitive.
func newURLSet(initial ...string) *stringSet {
	s := &stringSet{seen: make(map[string]struct{})}
	for _, v := range initial {
		s.Add(v)
	}
	return s
}

// Add appends v unless it is empty or already present.
func (s *stringSet) Add(v string) bool {
	if v == "" {
		return false
	}
	key := v
	if s.fold {
		key = strings.ToLower(v)
	}
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *stringSet) Items() []string { return s.items }
