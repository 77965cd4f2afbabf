package extract

import (
	"time"

	"github.com/sells-group/domain-intel/internal/model"
)

// ToPage flattens extraction output into the per-URL fields a collector
// reports. Fetch details (status, bytes, timing) are left to the caller.
func ToPage(pageURL string, d *model.ExtractedData) model.PageResult {
	p := model.PageResult{URL: pageURL, CollectedAt: time.Now().UTC()}
	if d == nil {
		return p
	}
	if m := d.Metadata; m != nil {
		p.Title = m.Title
		p.Description = m.Description
		p.Technologies = m.Technologies
		p.APIHints = m.APIHints
	}
	if c := d.Content; c != nil {
		if p.Title == "" {
			p.Title = c.Title
		}
		p.Text = c.MainText
		p.Images = c.Images
		p.Forms = c.Forms
		for _, l := range c.Links {
			p.Links = append(p.Links, l.URL)
		}
	}
	if s := d.Social; s != nil {
		p.Social = s.Profiles
		if p.Description == "" {
			p.Description = s.Sharing.Description
		}
	}
	if c := d.Contact; c != nil {
		p.Contact = *c
	}
	return p
}
