package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/domain-intel/internal/model"
)

var (
	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe   = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	streetRe  = regexp.MustCompile(`(?i)\b\d{1,6}\s+(?:[A-Za-z0-9.'\-]+\s+){0,5}(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|way|court|ct|place|pl|parkway|pkwy|highway|hwy|square|sq)\b\.?`)
	suiteRe   = regexp.MustCompile(`(?i)\b(?:suite|ste|unit|floor|fl)\.?\s*#?\s*[A-Za-z0-9\-]+`)
	postalRe  = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b|\b[A-Z]\d[A-Z]\s?\d[A-Z]\d\b|\b[A-Z]{1,2}\d[A-Z\d]?\s\d[A-Z]{2}\b`)
	hoursRe   = regexp.MustCompile(`(?i)\b(mon(?:day)?|tue(?:s|sday)?|wed(?:nesday)?|thu(?:r|rs|rsday)?|fri(?:day)?|sat(?:urday)?|sun(?:day)?)\b(?:\s*(?:-|–|to|through)\s*\b(mon(?:day)?|tue(?:s|sday)?|wed(?:nesday)?|thu(?:r|rs|rsday)?|fri(?:day)?|sat(?:urday)?|sun(?:day)?)\b)?\s*:?\s*(closed|\d{1,2}(?::\d{2})?\s*(?:am|pm)?\s*(?:-|–|to)\s*\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)
	assetTail = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|webp|css|js)$`)
)

var contactFormKeywords = []string{
	"contact", "message", "inquiry", "enquiry", "get in touch",
	"reach out", "reach us", "feedback", "request a quote", "send us",
}

// ExtractContact collects emails, phones, addresses, business hours and
// contact forms from markup. Partial data is returned for malformed input.
func ExtractContact(markup, sourceURL string) (model.ContactInfo, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return model.ContactInfo{}, err
	}
	base := parseBase(sourceURL)
	ld := jsonLD(doc)

	c := &contactCollector{
		emails: make(map[string]struct{}),
		phones: make(map[string]struct{}),
		addrs:  make(map[string]struct{}),
		hours:  make(map[string]struct{}),
	}

	c.scanLinks(doc)
	c.scanStructured(doc, ld)
	c.scanText(visibleText(doc))
	c.scanAddressBlocks(doc)
	c.scanHoursBlocks(doc)
	c.out.Forms = contactForms(doc, base)

	return c.out, nil
}

type contactCollector struct {
	out    model.ContactInfo
	emails map[string]struct{}
	phones map[string]struct{}
	addrs  map[string]struct{}
	hours  map[string]struct{}
}

func (c *contactCollector) addEmail(raw string) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if !emailRe.MatchString(addr) || assetTail.MatchString(addr) {
		return
	}
	addr = emailRe.FindString(addr)
	if _, ok := c.emails[addr]; ok {
		return
	}
	c.emails[addr] = struct{}{}
	c.out.Emails = append(c.out.Emails, model.Email{Email: addr, Type: classifyEmail(addr)})
}

func (c *contactCollector) addPhone(raw, context string) {
	number := NormalizePhone(raw)
	digits := strings.TrimPrefix(number, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return
	}
	if _, ok := c.phones[number]; ok {
		return
	}
	c.phones[number] = struct{}{}
	c.out.Phones = append(c.out.Phones, model.Phone{
		Number: number,
		Type:   classifyPhone(context),
		Raw:    strings.TrimSpace(raw),
	})
}

func (c *contactCollector) addAddress(a model.Address) {
	if a.FullText == "" {
		a.FullText = joinNonEmpty(", ", a.Street, a.City, a.Region, a.PostalCode, a.Country)
	}
	if a.FullText == "" {
		return
	}
	key := strings.ToLower(collapse(a.FullText))
	if _, ok := c.addrs[key]; ok {
		return
	}
	c.addrs[key] = struct{}{}
	c.out.Addresses = append(c.out.Addresses, a)
}

func (c *contactCollector) addHours(day, hours string) {
	day, hours = collapse(day), collapse(hours)
	if day == "" || hours == "" {
		return
	}
	key := strings.ToLower(day + "|" + hours)
	if _, ok := c.hours[key]; ok {
		return
	}
	c.hours[key] = struct{}{}
	c.out.Hours = append(c.out.Hours, model.BusinessHours{Day: day, Hours: hours})
}

func (c *contactCollector) scanLinks(doc *goquery.Document) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr := href[len("mailto:"):]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if un, err := url.PathUnescape(addr); err == nil {
				addr = un
			}
			for _, part := range strings.Split(addr, ",") {
				c.addEmail(part)
			}
		case strings.HasPrefix(lower, "tel:"):
			context := s.Text() + " " + s.Parent().Text() + " " + s.AttrOr("aria-label", "")
			c.addPhone(href[len("tel:"):], context)
		}
	})
}

func (c *contactCollector) scanStructured(doc *goquery.Document, ld []any) {
	for _, block := range ld {
		walkLD(block, func(obj map[string]any) {
			for _, e := range ldStrings(obj, "email") {
				c.addEmail(strings.TrimPrefix(strings.ToLower(e), "mailto:"))
			}
			for _, p := range ldStrings(obj, "telephone") {
				c.addPhone(p, ldString(obj, "contactType"))
			}
			for _, p := range ldStrings(obj, "faxNumber") {
				c.addPhone(p, "fax")
			}
			if ldType(obj, "PostalAddress") {
				c.addAddress(model.Address{
					Street:     ldString(obj, "streetAddress"),
					City:       ldString(obj, "addressLocality"),
					Region:     ldString(obj, "addressRegion"),
					PostalCode: ldString(obj, "postalCode"),
					Country:    ldString(obj, "addressCountry"),
				})
			}
			for _, oh := range ldStrings(obj, "openingHours") {
				day, hours, _ := strings.Cut(oh, " ")
				c.addHours(day, hours)
			}
			c.scanOpeningSpec(obj["openingHoursSpecification"])
		})
	}

	doc.Find(`[itemprop="email"]`).Each(func(_ int, s *goquery.Selection) {
		c.addEmail(strings.TrimPrefix(strings.ToLower(itemValue(s)), "mailto:"))
	})
	doc.Find(`[itemprop="telephone"]`).Each(func(_ int, s *goquery.Selection) {
		c.addPhone(strings.TrimPrefix(itemValue(s), "tel:"), s.Parent().Text())
	})
	doc.Find(`[itemprop="faxNumber"]`).Each(func(_ int, s *goquery.Selection) {
		c.addPhone(itemValue(s), "fax")
	})
	doc.Find(`[itemtype*="PostalAddress"]`).Each(func(_ int, s *goquery.Selection) {
		prop := func(name string) string {
			return itemValue(s.Find(`[itemprop="` + name + `"]`).First())
		}
		c.addAddress(model.Address{
			Street:     prop("streetAddress"),
			City:       prop("addressLocality"),
			Region:     prop("addressRegion"),
			PostalCode: prop("postalCode"),
			Country:    prop("addressCountry"),
		})
	})
	doc.Find(`[itemprop="openingHours"]`).Each(func(_ int, s *goquery.Selection) {
		day, hours, _ := strings.Cut(itemValue(s), " ")
		c.addHours(day, hours)
	})
}

func (c *contactCollector) scanOpeningSpec(v any) {
	var specs []map[string]any
	switch t := v.(type) {
	case map[string]any:
		specs = append(specs, t)
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				specs = append(specs, m)
			}
		}
	}
	for _, spec := range specs {
		hours := joinNonEmpty("-", ldString(spec, "opens"), ldString(spec, "closes"))
		for _, day := range ldStrings(spec, "dayOfWeek") {
			if i := strings.LastIndexByte(day, '/'); i >= 0 {
				day = day[i+1:]
			}
			c.addHours(day, hours)
		}
	}
}

func (c *contactCollector) scanText(text string) {
	for _, m := range emailRe.FindAllString(text, -1) {
		c.addEmail(m)
	}
	prevEnd := 0
	for _, loc := range phoneRe.FindAllStringIndex(text, -1) {
		start := max(loc[0]-40, prevEnd)
		c.addPhone(text[loc[0]:loc[1]], text[start:loc[0]])
		prevEnd = loc[1]
	}
}

func (c *contactCollector) scanAddressBlocks(doc *goquery.Document) {
	doc.Find(`address, [class*="address"], [id*="address"], [itemprop="address"]`).Each(func(_ int, s *goquery.Selection) {
		if s.Find(`address, [class*="address"]`).Length() > 0 {
			return
		}
		text := textOf(s)
		if text == "" || len(text) > 300 {
			return
		}
		street := streetRe.FindString(text)
		postal := postalRe.FindString(text)
		if street == "" && postal == "" {
			return
		}
		a := model.Address{FullText: text, PostalCode: postal}
		a.Street = street
		if suite := suiteRe.FindString(text); suite != "" && !strings.Contains(strings.ToLower(street), strings.ToLower(suite)) {
			a.Street = joinNonEmpty(", ", street, suite)
		}
		c.addAddress(a)
	})
}

func (c *contactCollector) scanHoursBlocks(doc *goquery.Document) {
	doc.Find(`[class*="hours"], [id*="hours"], [class*="opening"]`).Each(func(_ int, s *goquery.Selection) {
		text := textOf(s)
		for _, m := range hoursRe.FindAllStringSubmatch(text, -1) {
			day := m[1]
			if m[2] != "" {
				day += "-" + m[2]
			}
			c.addHours(day, m[3])
		}
	})
}

// contactForms returns forms whose visible text signals contact intent.
func contactForms(doc *goquery.Document, base *url.URL) []model.ContactForm {
	var forms []model.ContactForm
	doc.Find("form").Each(func(_ int, f *goquery.Selection) {
		parts := []string{f.Text(), f.AttrOr("id", ""), f.AttrOr("class", ""), f.AttrOr("name", "")}
		f.Find("input, textarea, select, button").Each(func(_ int, in *goquery.Selection) {
			parts = append(parts,
				in.AttrOr("placeholder", ""),
				in.AttrOr("name", ""),
				in.AttrOr("aria-label", ""),
				in.AttrOr("value", ""),
			)
		})
		text := strings.ToLower(strings.Join(parts, " "))
		if !containsAny(text, contactFormKeywords) {
			return
		}
		form := formShape(f, base)
		forms = append(forms, model.ContactForm{
			Action: form.Action,
			Method: form.Method,
			Fields: form.Fields,
		})
	})
	return forms
}

// formShape captures a form's resolved action, method and named fields.
func formShape(f *goquery.Selection, base *url.URL) model.Form {
	action := f.AttrOr("action", "")
	if resolved := resolve(base, action); resolved != "" {
		action = resolved
	} else if action == "" && base != nil {
		action = base.String()
	}
	method := strings.ToUpper(strings.TrimSpace(f.AttrOr("method", "")))
	if method == "" {
		method = "GET"
	}
	fields := newStringSet()
	f.Find("input[name], textarea[name], select[name]").Each(func(_ int, in *goquery.Selection) {
		switch strings.ToLower(in.AttrOr("type", "")) {
		case "hidden", "submit", "button", "image", "reset":
			return
		}
		fields.Add(in.AttrOr("name", ""))
	})
	return model.Form{Action: action, Method: method, Fields: fields.Items()}
}

// NormalizePhone keeps digits and a leading plus sign.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		if r == '+' && b.Len() == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func classifyEmail(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	switch {
	case containsAny(local, []string{"support", "help", "service", "care"}):
		return model.EmailSupport
	case containsAny(local, []string{"sales", "business", "partner", "order"}):
		return model.EmailSales
	case containsAny(local, []string{"info", "contact", "hello", "enquir", "inquir"}):
		return model.EmailInfo
	}
	return model.EmailGeneral
}

func classifyPhone(context string) string {
	context = strings.ToLower(context)
	switch {
	case strings.Contains(context, "fax"):
		return model.PhoneFax
	case containsAny(context, []string{"mobile", "cell"}):
		return model.PhoneMobile
	case containsAny(context, []string{"support", "help"}):
		return model.PhoneSupport
	}
	return model.PhoneMain
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
