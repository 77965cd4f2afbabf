package model

// Email type classifications.
const (
	EmailGeneral = "general"
	EmailSupport = "support"
	EmailSales   = "sales"
	EmailInfo    = "info"
)

// Phone type classifications.
const (
	PhoneMain    = "main"
	PhoneMobile  = "mobile"
	PhoneFax     = "fax"
	PhoneSupport = "support"
)

// Social profile types.
const (
	ProfileTypeProfile = "profile"
	ProfileTypePage    = "page"
	ProfileTypeGroup   = "group"
	ProfileTypeChannel = "channel"
)

// Email is an extracted email address.
type Email struct {
	Email string `json:"email" yaml:"email"`
	Type  string `json:"type" yaml:"type"`
}

// Phone is an extracted phone number, normalized to digits with an optional
// leading plus.
type Phone struct {
	Number string `json:"number" yaml:"number"`
	Type   string `json:"type" yaml:"type"`
	Raw    string `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Address is an extracted postal address.
type Address struct {
	Street     string `json:"street,omitempty" yaml:"street,omitempty"`
	City       string `json:"city,omitempty" yaml:"city,omitempty"`
	Region     string `json:"region,omitempty" yaml:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	Country    string `json:"country,omitempty" yaml:"country,omitempty"`
	FullText   string `json:"full_text" yaml:"full_text"`
}

// BusinessHours is an opening-hours entry.
type BusinessHours struct {
	Day   string `json:"day" yaml:"day"`
	Hours string `json:"hours" yaml:"hours"`
}

// ContactForm is a form whose visible text signals contact intent.
type ContactForm struct {
	Action string   `json:"action" yaml:"action"`
	Method string   `json:"method" yaml:"method"`
	Fields []string `json:"fields" yaml:"fields"`
}

// ContactInfo groups all contact channels found on a page.
type ContactInfo struct {
	Emails    []Email         `json:"emails,omitempty" yaml:"emails,omitempty"`
	Phones    []Phone         `json:"phones,omitempty" yaml:"phones,omitempty"`
	Addresses []Address       `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	Hours     []BusinessHours `json:"hours,omitempty" yaml:"hours,omitempty"`
	Forms     []ContactForm   `json:"forms,omitempty" yaml:"forms,omitempty"`
}

// Count returns the number of contact entries.
func (c ContactInfo) Count() int {
	return len(c.Emails) + len(c.Phones) + len(c.Addresses) + len(c.Hours) + len(c.Forms)
}

// IsEmpty reports whether no contact data was found.
func (c ContactInfo) IsEmpty() bool { return c.Count() == 0 }

// SocialProfile is a recognized link to a social platform.
type SocialProfile struct {
	Platform    string `json:"platform" yaml:"platform"`
	URL         string `json:"url" yaml:"url"`
	Handle      string `json:"handle,omitempty" yaml:"handle,omitempty"`
	ProfileType string `json:"profile_type" yaml:"profile_type"`
}

// SharingMeta is the page's share-card metadata.
type SharingMeta struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Image       string `json:"image,omitempty" yaml:"image,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	SiteName    string `json:"site_name,omitempty" yaml:"site_name,omitempty"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Feed is a syndication feed link.
type Feed struct {
	URL   string `json:"url" yaml:"url"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// SocialData is the social extractor's output.
type SocialData struct {
	Profiles []SocialProfile `json:"profiles,omitempty" yaml:"profiles,omitempty"`
	Sharing  SharingMeta     `json:"sharing" yaml:"sharing"`
	Feeds    []Feed          `json:"feeds,omitempty" yaml:"feeds,omitempty"`
}

// Heading is an h1-h6 element.
type Heading struct {
	Level int    `json:"level" yaml:"level"`
	Text  string `json:"text" yaml:"text"`
}

// Link is an anchor found in content.
type Link struct {
	URL      string `json:"url" yaml:"url"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`
	Internal bool   `json:"internal" yaml:"internal"`
}

// Table is a simple table inventory entry.
type Table struct {
	Headers []string   `json:"headers,omitempty" yaml:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// ContentData is the content extractor's output.
type ContentData struct {
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	MainText   string     `json:"main_text,omitempty" yaml:"main_text,omitempty"`
	Markdown   string     `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	Headings   []Heading  `json:"headings,omitempty" yaml:"headings,omitempty"`
	Paragraphs []string   `json:"paragraphs,omitempty" yaml:"paragraphs,omitempty"`
	Images     []Image    `json:"images,omitempty" yaml:"images,omitempty"`
	Links      []Link     `json:"links,omitempty" yaml:"links,omitempty"`
	Lists      [][]string `json:"lists,omitempty" yaml:"lists,omitempty"`
	Tables     []Table    `json:"tables,omitempty" yaml:"tables,omitempty"`
	Forms      []Form     `json:"forms,omitempty" yaml:"forms,omitempty"`
	WordCount  int        `json:"word_count" yaml:"word_count"`
}

// MetadataData is the metadata extractor's output.
type MetadataData struct {
	Title          string            `json:"title,omitempty" yaml:"title,omitempty"`
	Description    string            `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords       []string          `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Canonical      string            `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Language       string            `json:"language,omitempty" yaml:"language,omitempty"`
	Author         string            `json:"author,omitempty" yaml:"author,omitempty"`
	Generator      string            `json:"generator,omitempty" yaml:"generator,omitempty"`
	Robots         string            `json:"robots,omitempty" yaml:"robots,omitempty"`
	OpenGraph      map[string]string `json:"open_graph,omitempty" yaml:"open_graph,omitempty"`
	TwitterCard    map[string]string `json:"twitter_card,omitempty" yaml:"twitter_card,omitempty"`
	StructuredData []map[string]any  `json:"structured_data,omitempty" yaml:"structured_data,omitempty"`
	Microdata      []string          `json:"microdata,omitempty" yaml:"microdata,omitempty"`
	Custom         map[string]string `json:"custom,omitempty" yaml:"custom,omitempty"`
	Technologies   []string          `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	APIHints       []string          `json:"api_hints,omitempty" yaml:"api_hints,omitempty"`
}

// ExtractionSummary tells callers whether a page was worth visiting.
type ExtractionSummary struct {
	HasContent        bool `json:"has_content" yaml:"has_content"`
	HasContact        bool `json:"has_contact" yaml:"has_contact"`
	HasSocial         bool `json:"has_social" yaml:"has_social"`
	HasStructuredData bool `json:"has_structured_data" yaml:"has_structured_data"`
	DataPoints        int  `json:"data_points" yaml:"data_points"`
}

// ExtractedData is the pipeline output for one page. A nil category means
// it was disabled or its extractor failed; Failures names the latter.
type ExtractedData struct {
	URL      string            `json:"url,omitempty" yaml:"url,omitempty"`
	Content  *ContentData      `json:"content,omitempty" yaml:"content,omitempty"`
	Contact  *ContactInfo      `json:"contact,omitempty" yaml:"contact,omitempty"`
	Social   *SocialData       `json:"social,omitempty" yaml:"social,omitempty"`
	Metadata *MetadataData     `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Summary  ExtractionSummary `json:"summary" yaml:"summary"`
	Failures []string          `json:"failures,omitempty" yaml:"failures,omitempty"`
}
