package model

import "time"

// Form is a form observed on a page, keyed by its resolved action.
type Form struct {
	Action string   `json:"action" yaml:"action"`
	Method string   `json:"method" yaml:"method"`
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Image is an image reference observed on a page, keyed by its source.
type Image struct {
	Src string `json:"src" yaml:"src"`
	Alt string `json:"alt,omitempty" yaml:"alt,omitempty"`
}

// PageResult is one collector's output for one URL. It is never modified
// after the collector returns it.
type PageResult struct {
	URL          string          `json:"url" yaml:"url"`
	Success      bool            `json:"success" yaml:"success"`
	StatusCode   int             `json:"status_code" yaml:"status_code"`
	Title        string          `json:"title,omitempty" yaml:"title,omitempty"`
	Description  string          `json:"description,omitempty" yaml:"description,omitempty"`
	Text         string          `json:"text,omitempty" yaml:"text,omitempty"`
	Links        []string        `json:"links,omitempty" yaml:"links,omitempty"`
	Technologies []string        `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	APIHints     []string        `json:"api_hints,omitempty" yaml:"api_hints,omitempty"`
	Contact      ContactInfo     `json:"contact" yaml:"contact"`
	Social       []SocialProfile `json:"social,omitempty" yaml:"social,omitempty"`
	Forms        []Form          `json:"forms,omitempty" yaml:"forms,omitempty"`
	Images       []Image         `json:"images,omitempty" yaml:"images,omitempty"`
	Error        string          `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS   int64           `json:"duration_ms" yaml:"duration_ms"`
	Bytes        int64           `json:"bytes" yaml:"bytes"`
	CollectedAt  time.Time       `json:"collected_at" yaml:"collected_at"`
}

// FailedPage builds the result recorded for a URL that could not be collected.
func FailedPage(url string, err error) PageResult {
	p := PageResult{URL: url, CollectedAt: time.Now().UTC()}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// DataPoints counts the individual facts carried by the page.
func (p *PageResult) DataPoints() int {
	n := 0
	if p.Title != "" {
		n++
	}
	if p.Description != "" {
		n++
	}
	if p.Text != "" {
		n++
	}
	n += len(p.Links) + len(p.Technologies) + len(p.APIHints)
	n += p.Contact.Count()
	n += len(p.Social) + len(p.Forms) + len(p.Images)
	return n
}

// RunStats aggregates per-page outcomes of one collector run.
type RunStats struct {
	Attempted        int     `json:"attempted" yaml:"attempted"`
	Succeeded        int     `json:"succeeded" yaml:"succeeded"`
	Failed           int     `json:"failed" yaml:"failed"`
	TotalBytes       int64   `json:"total_bytes" yaml:"total_bytes"`
	DataPoints       int     `json:"data_points" yaml:"data_points"`
	AvgTimePerPageMS float64 `json:"avg_time_per_page_ms" yaml:"avg_time_per_page_ms"`
	SuccessRate      float64 `json:"success_rate" yaml:"success_rate"`
	DurationMS       int64   `json:"duration_ms" yaml:"duration_ms"`
}

// URLValidation records which input URLs a run accepted.
type URLValidation struct {
	Valid   []string `json:"valid" yaml:"valid"`
	Invalid []string `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

// ScraperResult is the output of one full collector run. It is appended to
// the session history and never modified afterwards.
type ScraperResult struct {
	ID              string        `json:"id" yaml:"id"`
	CollectorID     string        `json:"collector_id" yaml:"collector_id"`
	CollectorName   string        `json:"collector_name" yaml:"collector_name"`
	Strategy        string        `json:"strategy" yaml:"strategy"`
	Pages           []PageResult  `json:"pages" yaml:"pages"`
	Stats           RunStats      `json:"stats" yaml:"stats"`
	DiscoveredLinks []string      `json:"discovered_links,omitempty" yaml:"discovered_links,omitempty"`
	Validation      URLValidation `json:"validation" yaml:"validation"`
	Errors          []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
	Success         bool          `json:"success" yaml:"success"`
	StartedAt       time.Time     `json:"started_at" yaml:"started_at"`
	CompletedAt     time.Time     `json:"completed_at" yaml:"completed_at"`
}
