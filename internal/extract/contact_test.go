package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-intel/internal/model"
)

func TestExtractContact_MailtoAndTel(t *testing.T) {
	markup := `<html><body>
<a href="mailto:sales@acme.test">Email sales</a>
<a href="tel:+15551234567">Call us</a>
</body></html>`

	c, err := ExtractContact(markup, "https://acme.test/contact")
	require.NoError(t, err)

	require.Len(t, c.Emails, 1)
	assert.Equal(t, "sales@acme.test", c.Emails[0].Email)
	assert.Equal(t, model.EmailSales, c.Emails[0].Type)

	require.Len(t, c.Phones, 1)
	assert.Equal(t, "+15551234567", c.Phones[0].Number)
	assert.Equal(t, model.PhoneMain, c.Phones[0].Type)
}

func TestExtractContact_EmailDedupCaseInsensitive(t *testing.T) {
	markup := `<body>
<a href="mailto:Info@Acme.test?subject=Hi">Write</a>
<p>Or write to info@acme.test directly. Support: help@acme.test</p>
</body>`

	c, err := ExtractContact(markup, "")
	require.NoError(t, err)
	require.Len(t, c.Emails, 2)
	assert.Equal(t, model.Email{Email: "info@acme.test", Type: model.EmailInfo}, c.Emails[0])
	assert.Equal(t, model.Email{Email: "help@acme.test", Type: model.EmailSupport}, c.Emails[1])
}

func TestExtractContact_PhoneClassification(t *testing.T) {
	markup := `<body><p>Fax: (555) 123-9999</p><p>Phone: 555-123-4567</p><p>Mobile +44 20 7946 0958</p></body>`

	c, err := ExtractContact(markup, "")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(c.Phones), 2)
	assert.Equal(t, "5551239999", c.Phones[0].Number)
	assert.Equal(t, model.PhoneFax, c.Phones[0].Type)
	assert.Equal(t, "5551234567", c.Phones[1].Number)
	assert.Equal(t, model.PhoneMain, c.Phones[1].Type)
}

func TestExtractContact_StructuredData(t *testing.T) {
	markup := `<html><head><script type="application/ld+json">
{"@context":"https://schema.org","@type":"Organization",
 "email":"support@acme.test","telephone":"+1-555-000-1111",
 "address":{"@type":"PostalAddress","streetAddress":"1 Main St","addressLocality":"Springfield","addressRegion":"IL","postalCode":"62701","addressCountry":"US"},
 "openingHoursSpecification":[{"@type":"OpeningHoursSpecification","dayOfWeek":["https://schema.org/Monday","Tuesday"],"opens":"09:00","closes":"17:00"}]}
</script></head><body></body></html>`

	c, err := ExtractContact(markup, "https://acme.test")
	require.NoError(t, err)

	require.Len(t, c.Emails, 1)
	assert.Equal(t, model.EmailSupport, c.Emails[0].Type)
	require.Len(t, c.Phones, 1)
	assert.Equal(t, "+15550001111", c.Phones[0].Number)

	require.Len(t, c.Addresses, 1)
	assert.Equal(t, "1 Main St", c.Addresses[0].Street)
	assert.Equal(t, "1 Main St, Springfield, IL, 62701, US", c.Addresses[0].FullText)

	require.Len(t, c.Hours, 2)
	assert.Equal(t, model.BusinessHours{Day: "Monday", Hours: "09:00-17:00"}, c.Hours[0])
	assert.Equal(t, "Tuesday", c.Hours[1].Day)
}

func TestExtractContact_Microdata(t *testing.T) {
	markup := `<div itemscope itemtype="https://schema.org/LocalBusiness">
<span itemprop="telephone">(555) 222-3333</span>
<meta itemprop="openingHours" content="Mo-Fr 08:00-18:00">
<div itemprop="address" itemscope itemtype="https://schema.org/PostalAddress">
<span itemprop="streetAddress">9 Elm Road</span>
<span itemprop="addressLocality">Austin</span>
<span itemprop="postalCode">73301</span>
</div></div>`

	c, err := ExtractContact(markup, "")
	require.NoError(t, err)
	require.NotEmpty(t, c.Phones)
	assert.Equal(t, "5552223333", c.Phones[0].Number)
	require.NotEmpty(t, c.Addresses)
	assert.Equal(t, "9 Elm Road, Austin, 73301", c.Addresses[0].FullText)
	require.NotEmpty(t, c.Hours)
	assert.Equal(t, model.BusinessHours{Day: "Mo-Fr", Hours: "08:00-18:00"}, c.Hours[0])
}

func TestExtractContact_AddressBlock(t *testing.T) {
	markup := `<body><address>123 Market Street, Suite 400
San Francisco, CA 94105</address></body>`

	c, err := ExtractContact(markup, "")
	require.NoError(t, err)
	require.Len(t, c.Addresses, 1)
	assert.Contains(t, c.Addresses[0].Street, "123 Market Street")
	assert.Contains(t, c.Addresses[0].Street, "Suite 400")
	assert.Equal(t, "94105", c.Addresses[0].PostalCode)
	assert.Contains(t, c.Addresses[0].FullText, "San Francisco")
}

func TestExtractContact_HoursBlock(t *testing.T) {
	markup := `<body><div class="store-hours"><h3>Hours</h3>
<p>Monday - Friday: 9am - 5pm</p>
<p>Saturday: closed</p></div></body>`

	c, err := ExtractContact(markup, "")
	require.NoError(t, err)
	require.Len(t, c.Hours, 2)
	assert.Equal(t, model.BusinessHours{Day: "Monday-Friday", Hours: "9am - 5pm"}, c.Hours[0])
	assert.Equal(t, model.BusinessHours{Day: "Saturday", Hours: "closed"}, c.Hours[1])
}

func TestExtractContact_Forms(t *testing.T) {
	markup := `<body>
<form action="/contact/send" method="post">
  <label>Your message</label>
  <input name="name"><input name="email" type="email">
  <textarea name="message"></textarea>
  <input type="hidden" name="token" value="x">
  <button>Send</button>
</form>
<form action="/search"><input name="q" placeholder="Search"></form>
</body>`

	c, err := ExtractContact(markup, "https://acme.test/contact")
	require.NoError(t, err)
	require.Len(t, c.Forms, 1)
	assert.Equal(t, "https://acme.test/contact/send", c.Forms[0].Action)
	assert.Equal(t, "POST", c.Forms[0].Method)
	assert.Equal(t, []string{"name", "email", "message"}, c.Forms[0].Fields)
}

func TestExtractContact_MalformedMarkup(t *testing.T) {
	c, err := ExtractContact(`<html><body><div><a href="mailto:info@acme.test">mail<p>unclosed`, "")
	require.NoError(t, err)
	require.Len(t, c.Emails, 1)
	assert.Equal(t, "info@acme.test", c.Emails[0].Email)
}

func TestExtractContact_IgnoresAssetLookalikes(t *testing.T) {
	c, err := ExtractContact(`<body><p>logo@2x.png</p></body>`, "")
	require.NoError(t, err)
	assert.Empty(t, c.Emails)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+1 (555) 123-4567", "+15551234567"},
		{"555.123.4567", "5551234567"},
		{" +44 20 7946 0958 ", "+442079460958"},
		{"1+2", "12"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.raw))
		})
	}
}

func TestClassifyEmail(t *testing.T) {
	assert.Equal(t, model.EmailSales, classifyEmail("sales@acme.test"))
	assert.Equal(t, model.EmailSupport, classifyEmail("customer-support@acme.test"))
	assert.Equal(t, model.EmailInfo, classifyEmail("hello@acme.test"))
	assert.Equal(t, model.EmailGeneral, classifyEmail("jane.doe@acme.test"))
}
