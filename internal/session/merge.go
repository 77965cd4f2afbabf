package session

import (
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/model"
)

// mergePage folds one collector's page into the accumulated record.
func mergePage(rec *model.MergedPageData, p model.PageResult, collectorID string, now time.Time) {
	if collectorID != "" && !slices.Contains(rec.ScrapedBy, collectorID) {
		rec.ScrapedBy = append(rec.ScrapedBy, collectorID)
	}
	rec.Title = longer(rec.Title, p.Title)
	rec.Description = longer(rec.Description, p.Description)
	rec.Text = extract.AppendText(rec.Text, p.Text)
	rec.Links = extract.UnionStrings(rec.Links, p.Links)
	rec.Technologies = extract.UnionStrings(rec.Technologies, p.Technologies)
	rec.APIEndpoints = extract.UnionStrings(rec.APIEndpoints, p.APIHints)
	rec.Contact = extract.MergeContact(rec.Contact, p.Contact)
	rec.Social = extract.UnionProfiles(rec.Social, p.Social)
	rec.Forms = extract.UnionForms(rec.Forms, p.Forms)
	rec.Images = extract.UnionImages(rec.Images, p.Images)
	rec.UpdatedAt = now
}

// longer keeps current unless next has more characters.
func longer(current, next string) string {
	next = strings.TrimSpace(next)
	if utf8.RuneCountInString(next) > utf8.RuneCountInString(current) {
		return next
	}
	return current
}

// QualityScore rates a record 0-100 from the categories it carries plus
// corroboration by additional collectors.
func QualityScore(rec *model.MergedPageData) int {
	score := 0
	if rec.Title != "" {
		score += 10
	}
	if rec.Description != "" {
		score += 10
	}
	switch n := utf8.RuneCountInString(rec.Text); {
	case n >= 200:
		score += 15
	case n > 0:
		score += 5
	}
	if len(rec.Links) > 0 {
		score += 10
	}
	if len(rec.Technologies) > 0 {
		score += 10
	}
	if len(rec.APIEndpoints) > 0 {
		score += 5
	}
	if !rec.Contact.IsEmpty() {
		score += 15
	}
	if len(rec.Social) > 0 {
		score += 10
	}
	if len(rec.Forms) > 0 {
		score += 5
	}
	if len(rec.Images) > 0 {
		score += 5
	}
	if extra := len(rec.ScrapedBy) - 1; extra > 0 {
		score += min(extra*5, 15)
	}
	return max(0, min(score, 100))
}

// CompletenessScore is the share of the ten tracked fields that are
// populated, as a percentage.
func CompletenessScore(rec *model.MergedPageData) int {
	populated := 0
	for _, ok := range []bool{
		rec.Title != "",
		rec.Description != "",
		rec.Text != "",
		len(rec.Links) > 0,
		len(rec.Technologies) > 0,
		len(rec.APIEndpoints) > 0,
		!rec.Contact.IsEmpty(),
		len(rec.Social) > 0,
		len(rec.Forms) > 0,
		len(rec.Images) > 0,
	} {
		if ok {
			populated++
		}
	}
	return populated * 10
}

// urlKey is the map key for a URL: normalized, or empty when invalid.
func urlKey(raw string) string {
	norm, ok := collector.NormalizeURL(raw)
	if !ok {
		return ""
	}
	return norm
}

// normalizeDomain accepts a bare host or a URL and returns the lowercase
// host without a leading "www.".
func normalizeDomain(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			raw = u.Hostname()
		}
	}
	raw = strings.TrimSuffix(raw, "/")
	return strings.TrimPrefix(raw, "www.")
}

// sameDomain reports whether host belongs to the session domain, ignoring
// "www." and case.
func sameDomain(host, domain string) bool {
	return normalizeDomain(host) == domain
}

func clonePage(rec *model.MergedPageData) *model.MergedPageData {
	if rec == nil {
		return nil
	}
	c := *rec
	c.ScrapedBy = slices.Clone(rec.ScrapedBy)
	c.Links = slices.Clone(rec.Links)
	c.Technologies = slices.Clone(rec.Technologies)
	c.APIEndpoints = slices.Clone(rec.APIEndpoints)
	c.Contact = cloneContact(rec.Contact)
	c.Social = slices.Clone(rec.Social)
	c.Forms = cloneForms(rec.Forms)
	c.Images = slices.Clone(rec.Images)
	return &c
}

func cloneContact(c model.ContactInfo) model.ContactInfo {
	return model.ContactInfo{
		Emails:    slices.Clone(c.Emails),
		Phones:    slices.Clone(c.Phones),
		Addresses: slices.Clone(c.Addresses),
		Hours:     slices.Clone(c.Hours),
		Forms:     cloneContactForms(c.Forms),
	}
}

func cloneForms(in []model.Form) []model.Form {
	if in == nil {
		return nil
	}
	out := make([]model.Form, len(in))
	for i, f := range in {
		f.Fields = slices.Clone(f.Fields)
		out[i] = f
	}
	return out
}

func cloneContactForms(in []model.ContactForm) []model.ContactForm {
	if in == nil {
		return nil
	}
	out := make([]model.ContactForm, len(in))
	for i, f := range in {
		f.Fields = slices.Clone(f.Fields)
		out[i] = f
	}
	return out
}
