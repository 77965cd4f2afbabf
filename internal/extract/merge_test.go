package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-intel/internal/model"
)

func TestMergeExtracted(t *testing.T) {
	a := &model.ExtractedData{
		Content: &model.ContentData{
			Title:      "Home",
			MainText:   "Intro text",
			Paragraphs: []string{"One", "Two"},
			Images:     []model.Image{{Src: "https://a.test/1.png"}},
		},
		Contact: &model.ContactInfo{
			Emails: []model.Email{{Email: "sales@a.test", Type: model.EmailSales}},
			Phones: []model.Phone{{Number: "+15551234567", Type: model.PhoneMain}},
		},
		Social: &model.SocialData{
			Profiles: []model.SocialProfile{{Platform: "twitter", URL: "https://twitter.com/a"}},
			Feeds:    []model.Feed{{URL: "https://a.test/feed"}},
		},
		Metadata: &model.MetadataData{
			StructuredData: []map[string]any{{"@type": "Organization"}},
			Custom:         map[string]string{"app": "one", "keep": "yes"},
		},
		Failures: []string{CategoryContact},
	}
	b := &model.ExtractedData{
		Content: &model.ContentData{
			Title:      "Other",
			MainText:   "Intro text",
			Paragraphs: []string{"Two", "Three"},
			Images:     []model.Image{{Src: "https://a.test/1.png"}, {Src: "https://a.test/2.png"}},
		},
		Contact: &model.ContactInfo{
			Emails: []model.Email{{Email: "SALES@a.test", Type: model.EmailGeneral}},
			Phones: []model.Phone{{Number: "+15551234567", Type: model.PhoneFax}, {Number: "5550000000", Type: model.PhoneMain}},
		},
		Social: &model.SocialData{
			Profiles: []model.SocialProfile{{Platform: "twitter", URL: "https://twitter.com/a"}, {Platform: "github", URL: "https://github.com/a"}},
			Feeds:    []model.Feed{{URL: "https://a.test/feed"}},
		},
		Metadata: &model.MetadataData{
			StructuredData: []map[string]any{{"@type": "WebSite"}},
			Custom:         map[string]string{"app": "two"},
		},
	}

	out := MergeExtracted(a, nil, b)

	require.NotNil(t, out.Content)
	assert.Equal(t, "Home", out.Content.Title)
	assert.Equal(t, "Intro text", out.Content.MainText)
	assert.Equal(t, []string{"One", "Two", "Three"}, out.Content.Paragraphs)
	assert.Len(t, out.Content.Images, 2)

	require.NotNil(t, out.Contact)
	require.Len(t, out.Contact.Emails, 1)
	assert.Equal(t, model.EmailSales, out.Contact.Emails[0].Type)
	require.Len(t, out.Contact.Phones, 2)
	assert.Equal(t, model.PhoneMain, out.Contact.Phones[0].Type)

	require.NotNil(t, out.Social)
	assert.Len(t, out.Social.Profiles, 2)
	assert.Len(t, out.Social.Feeds, 1)

	require.NotNil(t, out.Metadata)
	assert.Len(t, out.Metadata.StructuredData, 2)
	assert.Equal(t, map[string]string{"app": "two", "keep": "yes"}, out.Metadata.Custom)
	assert.Equal(t, map[string]string{"app": "one", "keep": "yes"}, a.Metadata.Custom, "inputs are not mutated")

	assert.Equal(t, []string{CategoryContact}, out.Failures)
	assert.True(t, out.Summary.HasContact)
}

func TestMergeExtracted_AbsentCategoriesStayNil(t *testing.T) {
	out := MergeExtracted(&model.ExtractedData{Contact: &model.ContactInfo{}})
	assert.Nil(t, out.Content)
	assert.Nil(t, out.Social)
	assert.Nil(t, out.Metadata)
	assert.NotNil(t, out.Contact)
}

func TestAppendText(t *testing.T) {
	assert.Equal(t, "a", AppendText("a", ""))
	assert.Equal(t, "b", AppendText("", "b"))
	assert.Equal(t, "hello world", AppendText("hello world", "world"))
	assert.Equal(t, "one\n\ntwo", AppendText("one", "two"))
}

func TestUnionStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "B", "b", "c", "A"}, UnionStrings([]string{"a", "B"}, []string{"b", "c", "A", "a"}))
	assert.Nil(t, UnionStrings(nil, nil))
}

func TestUnionStrings_URLPathsKeepCase(t *testing.T) {
	got := UnionStrings(
		[]string{"https://acme.test/Docs/API"},
		[]string{"https://acme.test/docs/api", "https://acme.test/Docs/API"},
	)
	assert.Equal(t, []string{"https://acme.test/Docs/API", "https://acme.test/docs/api"}, got)
}

func TestUnionText_IgnoresCase(t *testing.T) {
	assert.Equal(t, []string{"a", "B", "c"}, unionText([]string{"a", "B"}, []string{"b", "c", "A"}))
}

func TestUnionForms(t *testing.T) {
	dst := []model.Form{
		{Action: "https://acme.test/Subscribe", Method: "POST", Fields: []string{"email"}},
		{Method: "GET", Fields: []string{"q"}},
	}
	src := []model.Form{
		{Action: "https://acme.test/subscribe", Method: "POST", Fields: []string{"email"}},
		{Method: "get", Fields: []string{"q"}},
		{Method: "POST", Fields: []string{"name", "message"}},
	}

	got := UnionForms(dst, src)
	require.Len(t, got, 4)
	assert.Equal(t, "https://acme.test/subscribe", got[2].Action)
	assert.Equal(t, []string{"name", "message"}, got[3].Fields)
}

func TestUnionImages(t *testing.T) {
	dst := []model.Image{{Src: "https://acme.test/Logo.png"}, {Alt: "inline chart"}}
	src := []model.Image{
		{Src: "https://acme.test/logo.png"},
		{Src: "https://acme.test/Logo.png"},
		{Alt: "inline chart"},
		{Alt: "inline map"},
	}

	got := UnionImages(dst, src)
	require.Len(t, got, 4)
	assert.Equal(t, "https://acme.test/logo.png", got[2].Src)
	assert.Equal(t, "inline map", got[3].Alt)
}
