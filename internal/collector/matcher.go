package collector

import (
	"net/url"
	"path"
	"strings"
)

// PathMatcher decides which URLs a collector accepts. Patterns starting with
// "/" are path globs ("/blog/*", "/*.pdf"); anything else is a host glob
// ("*.example.com", "shop.example.com").
type PathMatcher struct {
	include []string
	exclude []string
}

// NewPathMatcher creates a matcher. Empty lists allow everything.
func NewPathMatcher(include, exclude []string) *PathMatcher {
	return &PathMatcher{include: lowerAll(include), exclude: lowerAll(exclude)}
}

// Allows rejects on any exclude match, then requires an include match when
// include patterns exist.
func (m *PathMatcher) Allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	for _, p := range m.exclude {
		if matchURL(p, u) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, p := range m.include {
		if matchURL(p, u) {
			return true
		}
	}
	return false
}

func matchURL(pattern string, u *url.URL) bool {
	if strings.HasPrefix(pattern, "/") {
		p := strings.ToLower(u.Path)
		if p == "" {
			p = "/"
		}
		return matchSegmented(pattern, p)
	}
	return matchHost(pattern, strings.ToLower(u.Hostname()))
}

// matchSegmented performs glob matching where "/blog/*" matches both
// "/blog/post" and "/blog/deep/nested/path".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}

// matchHost matches a host glob. "*.example.com" also matches the apex.
func matchHost(pattern, host string) bool {
	if ok, _ := path.Match(pattern, host); ok {
		return true
	}
	if apex, ok := strings.CutPrefix(pattern, "*."); ok {
		return host == apex || strings.HasSuffix(host, "."+apex)
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
