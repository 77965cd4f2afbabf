package session

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/domain-intel/internal/model"
)

var assetExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".zip": true, ".gz": true, ".tar": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".webp": true, ".ico": true, ".bmp": true, ".mp4": true, ".mp3": true,
	".mov": true, ".avi": true, ".webm": true, ".woff": true, ".woff2": true,
	".ttf": true, ".eot": true, ".css": true, ".js": true, ".json": true,
	".xml": true, ".txt": true, ".csv": true, ".dmg": true, ".exe": true,
}

var highValueSegments = []string{
	"contact", "about", "team", "pricing", "products", "product",
	"services", "service", "company", "locations", "location",
}

var lowValueSegments = []string{
	"privacy", "terms", "legal", "cookie", "cookies", "disclaimer",
	"login", "signin", "sign-in", "logout", "register", "signup", "sign-up",
	"account", "cart", "checkout", "tag", "tags", "category", "categories",
	"feed", "wp-admin", "wp-login.php",
}

var paginationRe = regexp.MustCompile(`(?i)/page/\d+/?$|[?&](page|p|paged)=\d+`)

// maxUsefulDepth is the deepest path, in segments, not treated as low value.
const maxUsefulDepth = 4

// UndiscoveredLinks lists links seen in run output that are neither merged
// nor previously discovered. Internal links come first, then high, medium
// and low priority; ties keep first-seen order.
func (s *Session) UndiscoveredLinks() []model.DiscoveredLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.undiscovered()
}

// undiscovered implements UndiscoveredLinks. Callers hold s.mu.
func (s *Session) undiscovered() []model.DiscoveredLink {
	seen := make(map[string]bool)
	var out []model.DiscoveredLink
	add := func(raw, foundOn string) {
		key := urlKey(raw)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		if _, merged := s.pages[key]; merged || s.previous[key] {
			return
		}
		out = append(out, classifyLink(key, foundOn, s.domain))
	}

	for _, res := range s.history {
		for _, p := range res.Pages {
			if !p.Success {
				continue
			}
			for _, l := range p.Links {
				add(l, p.URL)
			}
		}
		for _, l := range res.DiscoveredLinks {
			add(l, "")
		}
	}
	for _, key := range s.order {
		for _, l := range s.pages[key].Links {
			add(l, key)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ii, ij := out[i].Type == model.LinkInternal, out[j].Type == model.LinkInternal
		if ii != ij {
			return ii
		}
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

func classifyLink(rawURL, foundOn, domain string) model.DiscoveredLink {
	link := model.DiscoveredLink{URL: rawURL, FoundOn: foundOn, Type: model.LinkExternal, Priority: model.PriorityMedium}
	u, err := url.Parse(rawURL)
	if err != nil {
		link.Priority = model.PriorityLow
		return link
	}

	if assetExtensions[strings.ToLower(path.Ext(u.Path))] {
		link.Type = model.LinkAsset
		link.Priority = model.PriorityLow
		return link
	}
	if sameDomain(u.Hostname(), domain) {
		link.Type = model.LinkInternal
	}
	link.Priority = linkPriority(u)
	return link
}

func linkPriority(u *url.URL) model.LinkPriority {
	segments := pathSegments(u.Path)
	if paginationRe.MatchString(u.Path) || paginationRe.MatchString("?"+u.RawQuery) {
		return model.PriorityLow
	}
	if len(segments) > maxUsefulDepth {
		return model.PriorityLow
	}
	for _, seg := range segments {
		for _, low := range lowValueSegments {
			if seg == low {
				return model.PriorityLow
			}
		}
	}
	for _, seg := range segments {
		for _, high := range highValueSegments {
			if seg == high || strings.HasPrefix(seg, high+"-") || strings.HasPrefix(seg, high+"_") {
				return model.PriorityHigh
			}
		}
	}
	return model.PriorityMedium
}

func pathSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(strings.ToLower(p), "/") {
		if seg == "" {
			continue
		}
		out = append(out, strings.TrimSuffix(strings.TrimSuffix(seg, ".html"), ".htm"))
	}
	return out
}

// isContactLink reports whether link points at a contact or about page.
func isContactLink(link model.DiscoveredLink) bool {
	u, err := url.Parse(link.URL)
	if err != nil {
		return false
	}
	for _, seg := range pathSegments(u.Path) {
		if strings.HasPrefix(seg, "contact") || strings.HasPrefix(seg, "about") {
			return true
		}
	}
	return false
}
