package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/domain-intel/internal/model"
)

// platform describes how to recognize one social network. pattern is
// matched against "host/path" with the host lowercased and a leading
// www./m./mobile. stripped; the first non-empty group is the handle.
type platform struct {
	name     string
	pattern  *regexp.Regexp
	reserved map[string]bool
}

func reserved(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var platforms = []platform{
	{"facebook", regexp.MustCompile(`^(?:facebook|fb)\.com/(?:pg/|groups/|pages/(?:[^/]+/)?)?([A-Za-z0-9.\-]+)`),
		reserved("sharer", "sharer.php", "share", "share.php", "dialog", "plugins", "tr", "login", "policies", "help", "privacy")},
	{"twitter", regexp.MustCompile(`^(?:twitter|x)\.com/@?([A-Za-z0-9_]{1,15})(?:/|$)`),
		reserved("intent", "share", "home", "i", "search", "hashtag", "privacy", "tos", "login")},
	{"linkedin", regexp.MustCompile(`^(?:[a-z]{2}\.)?linkedin\.com/(?:in|company|school|showcase|groups)/([A-Za-z0-9\-_%.]+)`),
		nil},
	{"instagram", regexp.MustCompile(`^instagram\.com/([A-Za-z0-9_.]+)`),
		reserved("p", "explore", "reel", "reels", "stories", "accounts", "about")},
	{"youtube", regexp.MustCompile(`^youtube\.com/(?:@([A-Za-z0-9_.\-]+)|(?:c|channel|user)/([A-Za-z0-9_\-]+))`),
		nil},
	{"tiktok", regexp.MustCompile(`^tiktok\.com/@([A-Za-z0-9_.]+)`),
		nil},
	{"github", regexp.MustCompile(`^github\.com/(?:orgs/)?([A-Za-z0-9\-]+)`),
		reserved("features", "about", "pricing", "login", "sponsors", "marketplace", "topics", "site")},
	{"pinterest", regexp.MustCompile(`^pinterest\.[a-z.]+/([A-Za-z0-9_]+)`),
		reserved("pin", "search", "ideas")},
	{"reddit", regexp.MustCompile(`^reddit\.com/(?:r|u|user)/([A-Za-z0-9_\-]+)`),
		nil},
	{"medium", regexp.MustCompile(`^medium\.com/@?([A-Za-z0-9_.\-]+)`),
		reserved("m", "about", "policy", "tag", "topics")},
	{"discord", regexp.MustCompile(`^(?:discord\.gg|discord\.com/invite)/([A-Za-z0-9\-]+)`),
		nil},
	{"telegram", regexp.MustCompile(`^(?:t|telegram)\.me/([A-Za-z0-9_]+)`),
		reserved("share", "joinchat")},
}

var feedPathRe = regexp.MustCompile(`(?i)(/feed/?$|/rss/?$|\.rss$|/atom\.xml$|/rss\.xml$|/feed\.xml$|/index\.xml$|/feed\.json$)`)

// ExtractSocial finds social profiles, sharing metadata and syndication feeds.
func ExtractSocial(markup, sourceURL string) (model.SocialData, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return model.SocialData{}, err
	}
	base := parseBase(sourceURL)

	var out model.SocialData
	seen := make(map[string]struct{})
	add := func(raw string) {
		p, ok := MatchSocial(resolve(base, raw))
		if !ok {
			return
		}
		key := strings.ToLower(p.URL)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out.Profiles = append(out.Profiles, p)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""))
	})
	doc.Find(`[class*="social"], [id*="social"]`).Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"data-href", "data-url", "href"} {
			if v, ok := s.Attr(attr); ok {
				add(v)
			}
		}
	})
	for _, block := range jsonLD(doc) {
		walkLD(block, func(obj map[string]any) {
			for _, v := range ldStrings(obj, "sameAs") {
				add(v)
			}
		})
	}

	out.Sharing = sharingMeta(doc, base)
	out.Feeds = feeds(doc, base)
	return out, nil
}

// MatchSocial recognizes a social platform URL and returns its canonical
// profile entry.
func MatchSocial(rawURL string) (model.SocialProfile, bool) {
	if rawURL == "" {
		return model.SocialProfile{}, false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return model.SocialProfile{}, false
	}
	host := strings.ToLower(u.Host)
	for _, prefix := range []string{"www.", "m.", "mobile."} {
		host = strings.TrimPrefix(host, prefix)
	}
	path := strings.TrimRight(u.Path, "/")
	key := host + path

	for _, pl := range platforms {
		m := pl.pattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		handle := ""
		for _, g := range m[1:] {
			if g != "" {
				handle = g
				break
			}
		}
		if handle == "" || pl.reserved[strings.ToLower(handle)] {
			return model.SocialProfile{}, false
		}
		matched := strings.TrimRight(m[0], "/")
		return model.SocialProfile{
			Platform:    pl.name,
			URL:         "https://" + matched,
			Handle:      handle,
			ProfileType: profileType(pl.name, host, matched),
		}, true
	}
	return model.SocialProfile{}, false
}

func profileType(platform, host, matched string) string {
	lower := strings.ToLower(matched) + "/"
	switch {
	case containsAny(lower, []string{"/groups/", "/group/", "/r/"}), platform == "discord":
		return model.ProfileTypeGroup
	case containsAny(lower, []string{"/company/", "/showcase/", "/school/", "/pages/", "/pg/"}):
		return model.ProfileTypePage
	case platform == "youtube", platform == "telegram" && strings.HasPrefix(host, "t."):
		return model.ProfileTypeChannel
	}
	return model.ProfileTypeProfile
}

// sharingMeta reads Open Graph tags, falling back to Twitter card tags for
// anything Open Graph leaves empty.
func sharingMeta(doc *goquery.Document, base *url.URL) model.SharingMeta {
	og := metaMap(doc, "og:")
	tw := metaMap(doc, "twitter:")

	m := model.SharingMeta{
		Title:       og["title"],
		Description: og["description"],
		Image:       og["image"],
		URL:         og["url"],
		SiteName:    og["site_name"],
		Type:        og["type"],
	}
	if len(og) > 0 {
		m.Source = "open_graph"
	}
	fallback := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			if m.Source == "" {
				m.Source = "twitter_card"
			}
		}
	}
	fallback(&m.Title, tw["title"])
	fallback(&m.Description, tw["description"])
	fallback(&m.Image, tw["image"])
	fallback(&m.SiteName, tw["site"])
	if m.Image != "" {
		if abs := resolve(base, m.Image); abs != "" {
			m.Image = abs
		}
	}
	return m
}

// metaMap collects <meta> tags whose property or name starts with prefix.
// The first occurrence of each key wins.
func metaMap(doc *goquery.Document, prefix string) map[string]string {
	out := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := s.AttrOr("property", "")
		if key == "" {
			key = s.AttrOr("name", "")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !strings.HasPrefix(key, prefix) {
			return
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		name := strings.TrimPrefix(key, prefix)
		if _, ok := out[name]; !ok {
			out[name] = content
		}
	})
	return out
}

func feeds(doc *goquery.Document, base *url.URL) []model.Feed {
	var out []model.Feed
	seen := newURLSet()
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		typ := strings.ToLower(s.AttrOr("type", ""))
		if !containsAny(typ, []string{"rss", "atom", "feed+json"}) {
			return
		}
		href := resolve(base, s.AttrOr("href", ""))
		if seen.Add(href) {
			out = append(out, model.Feed{URL: href, Type: typ, Title: strings.TrimSpace(s.AttrOr("title", ""))})
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := resolve(base, s.AttrOr("href", ""))
		if href == "" {
			return
		}
		u, err := url.Parse(href)
		if err != nil || !feedPathRe.MatchString(u.Path) {
			return
		}
		if seen.Add(href) {
			out = append(out, model.Feed{URL: href, Title: collapse(s.Text())})
		}
	})
	return out
}
