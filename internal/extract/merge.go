package extract

import (
	"strconv"
	"strings"

	"github.com/sells-group/domain-intel/internal/model"
)

// MergeExtracted combines several pages' extraction results. Content
// sections are concatenated and deduplicated, contact entries deduplicated by
// identity keeping the first classification, social profiles and feeds
// deduplicated by URL, structured data concatenated and custom metadata
// shallow-merged with later values winning.
func MergeExtracted(results ...*model.ExtractedData) *model.ExtractedData {
	out := &model.ExtractedData{}
	failures := newStringSet()

	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Content != nil {
			out.Content = mergeContent(out.Content, r.Content)
		}
		if r.Contact != nil {
			merged := MergeContact(derefContact(out.Contact), *r.Contact)
			out.Contact = &merged
		}
		if r.Social != nil {
			out.Social = mergeSocial(out.Social, r.Social)
		}
		if r.Metadata != nil {
			out.Metadata = mergeMetadata(out.Metadata, r.Metadata)
		}
		for _, f := range r.Failures {
			failures.Add(f)
		}
	}
	out.Failures = failures.Items()
	out.Summary = Summarize(out)
	return out
}

func derefContact(c *model.ContactInfo) model.ContactInfo {
	if c == nil {
		return model.ContactInfo{}
	}
	return *c
}

func mergeContent(dst, src *model.ContentData) *model.ContentData {
	if dst == nil {
		dst = &model.ContentData{}
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	dst.MainText = AppendText(dst.MainText, src.MainText)
	dst.Markdown = AppendText(dst.Markdown, src.Markdown)
	dst.WordCount = len(strings.Fields(dst.MainText))

	headings := newStringSet()
	for _, h := range dst.Headings {
		headings.Add(strconv.Itoa(h.Level) + "|" + h.Text)
	}
	for _, h := range src.Headings {
		if headings.Add(strconv.Itoa(h.Level) + "|" + h.Text) {
			dst.Headings = append(dst.Headings, h)
		}
	}

	dst.Paragraphs = unionText(dst.Paragraphs, src.Paragraphs)
	dst.Images = UnionImages(dst.Images, src.Images)

	links := newURLSet()
	for _, l := range dst.Links {
		links.Add(l.URL)
	}
	for _, l := range src.Links {
		if links.Add(l.URL) {
			dst.Links = append(dst.Links, l)
		}
	}

	lists := newStringSet()
	for _, l := range dst.Lists {
		lists.Add(strings.Join(l, "\x1f"))
	}
	for _, l := range src.Lists {
		if lists.Add(strings.Join(l, "\x1f")) {
			dst.Lists = append(dst.Lists, l)
		}
	}

	dst.Tables = append(dst.Tables, src.Tables...)
	dst.Forms = UnionForms(dst.Forms, src.Forms)
	return dst
}

func mergeSocial(dst, src *model.SocialData) *model.SocialData {
	if dst == nil {
		dst = &model.SocialData{}
	}
	dst.Profiles = UnionProfiles(dst.Profiles, src.Profiles)

	feeds := newURLSet()
	for _, f := range dst.Feeds {
		feeds.Add(f.URL)
	}
	for _, f := range src.Feeds {
		if feeds.Add(f.URL) {
			dst.Feeds = append(dst.Feeds, f)
		}
	}
	if dst.Sharing == (model.SharingMeta{}) {
		dst.Sharing = src.Sharing
	}
	return dst
}

func mergeMetadata(dst, src *model.MetadataData) *model.MetadataData {
	if dst == nil {
		dst = &model.MetadataData{}
	}
	firstNonEmpty(&dst.Title, src.Title)
	firstNonEmpty(&dst.Description, src.Description)
	firstNonEmpty(&dst.Canonical, src.Canonical)
	firstNonEmpty(&dst.Language, src.Language)
	firstNonEmpty(&dst.Author, src.Author)
	firstNonEmpty(&dst.Generator, src.Generator)
	firstNonEmpty(&dst.Robots, src.Robots)

	dst.Keywords = unionText(dst.Keywords, src.Keywords)
	dst.Microdata = UnionStrings(dst.Microdata, src.Microdata)
	dst.Technologies = UnionStrings(dst.Technologies, src.Technologies)
	dst.APIHints = UnionStrings(dst.APIHints, src.APIHints)
	dst.StructuredData = append(dst.StructuredData, src.StructuredData...)
	dst.OpenGraph = shallowMerge(dst.OpenGraph, src.OpenGraph)
	dst.TwitterCard = shallowMerge(dst.TwitterCard, src.TwitterCard)
	dst.Custom = shallowMerge(dst.Custom, src.Custom)
	return dst
}

// MergeContact unions two contact records. Identity is the lowercased email,
// the normalized phone number, the normalized address text, the day and
// hours pair, and the form action. The first-seen entry wins.
func MergeContact(dst, src model.ContactInfo) model.ContactInfo {
	out := model.ContactInfo{}

	emails := newStringSet()
	for _, e := range append(append([]model.Email{}, dst.Emails...), src.Emails...) {
		if emails.Add(strings.ToLower(e.Email)) {
			out.Emails = append(out.Emails, e)
		}
	}
	phones := newStringSet()
	for _, p := range append(append([]model.Phone{}, dst.Phones...), src.Phones...) {
		if phones.Add(p.Number) {
			out.Phones = append(out.Phones, p)
		}
	}
	addrs := newStringSet()
	for _, a := range append(append([]model.Address{}, dst.Addresses...), src.Addresses...) {
		if addrs.Add(collapse(a.FullText)) {
			out.Addresses = append(out.Addresses, a)
		}
	}
	hours := newStringSet()
	for _, h := range append(append([]model.BusinessHours{}, dst.Hours...), src.Hours...) {
		if hours.Add(h.Day + "|" + h.Hours) {
			out.Hours = append(out.Hours, h)
		}
	}
	forms := newURLSet()
	for _, f := range append(append([]model.ContactForm{}, dst.Forms...), src.Forms...) {
		if forms.Add(formKey(f.Action, f.Method, f.Fields)) {
			out.Forms = append(out.Forms, f)
		}
	}
	return out
}

// UnionStrings appends the members of src missing from dst, keeping order.
// Comparison is exact since most members are URLs.
func UnionStrings(dst, src []string) []string {
	return union(newURLSet(dst...), src)
}

// unionText is UnionStrings for prose, ignoring case.
func unionText(dst, src []string) []string {
	return union(newStringSet(dst...), src)
}

func union(set *stringSet, src []string) []string {
	out := append([]string(nil), set.Items()...)
	for _, v := range src {
		if set.Add(v) {
			out = append(out, v)
		}
	}
	return out
}

// UnionProfiles deduplicates social profiles by URL.
func UnionProfiles(dst, src []model.SocialProfile) []model.SocialProfile {
	set := newStringSet()
	var out []model.SocialProfile
	for _, p := range append(append([]model.SocialProfile{}, dst...), src...) {
		if set.Add(p.URL) {
			out = append(out, p)
		}
	}
	return out
}

// UnionForms deduplicates forms by action. Forms without an action are
// told apart by method and fields.
func UnionForms(dst, src []model.Form) []model.Form {
	set := newURLSet()
	var out []model.Form
	for _, f := range append(append([]model.Form{}, dst...), src...) {
		if set.Add(formKey(f.Action, f.Method, f.Fields)) {
			out = append(out, f)
		}
	}
	return out
}

// UnionImages deduplicates images by source, falling back to alt text.
func UnionImages(dst, src []model.Image) []model.Image {
	set := newURLSet()
	var out []model.Image
	for _, img := range append(append([]model.Image{}, dst...), src...) {
		key := img.Src
		if key == "" {
			key = "\x00alt|" + img.Alt
		}
		if set.Add(key) {
			out = append(out, img)
		}
	}
	return out
}

// AppendText joins b onto a with a blank line unless b is empty or already
// contained in a.
func AppendText(a, b string) string {
	b = strings.TrimSpace(b)
	switch {
	case b == "", strings.Contains(a, b):
		return a
	case a == "":
		return b
	}
	return a + "\n\n" + b
}

func firstNonEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func shallowMerge(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func formKey(action, method string, fields []string) string {
	if action != "" {
		return action
	}
	return "\x00" + strings.ToLower(method) + "|" + strings.Join(fields, ",")
}
