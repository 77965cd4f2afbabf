package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageResultDataPoints(t *testing.T) {
	p := PageResult{
		Title:        "Home",
		Description:  "Welcome",
		Links:        []string{"https://a.test/x", "https://a.test/y"},
		Technologies: []string{"WordPress"},
		Contact: ContactInfo{
			Emails: []Email{{Email: "info@a.test", Type: EmailInfo}},
			Phones: []Phone{{Number: "+15551234567", Type: PhoneMain}},
		},
		Images: []Image{{Src: "https://a.test/logo.png"}},
	}
	assert.Equal(t, 8, p.DataPoints())
}

func TestPageResultDataPoints_Empty(t *testing.T) {
	var p PageResult
	assert.Zero(t, p.DataPoints())
}

func TestFailedPage(t *testing.T) {
	p := FailedPage("https://a.test", errors.New("boom"))
	assert.Equal(t, "https://a.test", p.URL)
	assert.False(t, p.Success)
	assert.Equal(t, "boom", p.Error)
	assert.False(t, p.CollectedAt.IsZero())
}

func TestContactInfoCount(t *testing.T) {
	var c ContactInfo
	assert.True(t, c.IsEmpty())

	c.Hours = []BusinessHours{{Day: "Monday", Hours: "9-5"}}
	c.Forms = []ContactForm{{Action: "/contact"}}
	assert.Equal(t, 2, c.Count())
	assert.False(t, c.IsEmpty())
}

func TestLinkPriorityRank(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, 2, LinkPriority("").Rank())
}
