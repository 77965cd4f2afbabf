package model

import "time"

// MergedPageData is the accumulated record for one URL across all runs of a
// session.
type MergedPageData struct {
	URL               string          `json:"url" yaml:"url"`
	ScrapedBy         []string        `json:"scraped_by" yaml:"scraped_by"`
	Title             string          `json:"title,omitempty" yaml:"title,omitempty"`
	Description       string          `json:"description,omitempty" yaml:"description,omitempty"`
	Text              string          `json:"text,omitempty" yaml:"text,omitempty"`
	Links             []string        `json:"links,omitempty" yaml:"links,omitempty"`
	Technologies      []string        `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	APIEndpoints      []string        `json:"api_endpoints,omitempty" yaml:"api_endpoints,omitempty"`
	Contact           ContactInfo     `json:"contact" yaml:"contact"`
	Social            []SocialProfile `json:"social,omitempty" yaml:"social,omitempty"`
	Forms             []Form          `json:"forms,omitempty" yaml:"forms,omitempty"`
	Images            []Image         `json:"images,omitempty" yaml:"images,omitempty"`
	QualityScore      int             `json:"quality_score" yaml:"quality_score"`
	CompletenessScore int             `json:"completeness_score" yaml:"completeness_score"`
	FirstSeenAt       time.Time       `json:"first_seen_at" yaml:"first_seen_at"`
	UpdatedAt         time.Time       `json:"updated_at" yaml:"updated_at"`
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// SessionStats are cumulative counters for a session.
type SessionStats struct {
	TotalRuns           int       `json:"total_runs" yaml:"total_runs"`
	SuccessfulRuns      int       `json:"successful_runs" yaml:"successful_runs"`
	FailedRuns          int       `json:"failed_runs" yaml:"failed_runs"`
	TotalPages          int       `json:"total_pages" yaml:"total_pages"`
	PagesAttempted      int       `json:"pages_attempted" yaml:"pages_attempted"`
	TotalBytes          int64     `json:"total_bytes" yaml:"total_bytes"`
	TotalDataPoints     int       `json:"total_data_points" yaml:"total_data_points"`
	UniqueLinks         int       `json:"unique_links" yaml:"unique_links"`
	AverageQuality      float64   `json:"average_quality" yaml:"average_quality"`
	AverageCompleteness float64   `json:"average_completeness" yaml:"average_completeness"`
	CollectorsUsed      []string  `json:"collectors_used,omitempty" yaml:"collectors_used,omitempty"`
	LastRunAt           time.Time `json:"last_run_at,omitempty" yaml:"last_run_at,omitempty"`
}

// SuggestionAction names a recommended next step.
type SuggestionAction string

const (
	ActionUseCollector SuggestionAction = "use_collector"
	ActionExploreLinks SuggestionAction = "explore_links"
	ActionExtractData  SuggestionAction = "extract_data"
	ActionComplete     SuggestionAction = "complete"
)

// Confidence levels: a stated fact or a heuristic guess.
const (
	ConfidenceFact      = 100
	ConfidenceHeuristic = 50
)

// Suggestion is a deterministic recommendation for the next action.
type Suggestion struct {
	Action      SuggestionAction `json:"action" yaml:"action"`
	Reason      string           `json:"reason" yaml:"reason"`
	Confidence  int              `json:"confidence" yaml:"confidence"`
	CollectorID string           `json:"collector_id,omitempty" yaml:"collector_id,omitempty"`
	TargetURLs  []string         `json:"target_urls,omitempty" yaml:"target_urls,omitempty"`
}

// LinkType classifies a discovered link relative to the session domain.
type LinkType string

const (
	LinkInternal LinkType = "internal"
	LinkExternal LinkType = "external"
	LinkAsset    LinkType = "asset"
)

// LinkPriority ranks a discovered link for follow-up.
type LinkPriority string

const (
	PriorityHigh   LinkPriority = "high"
	PriorityMedium LinkPriority = "medium"
	PriorityLow    LinkPriority = "low"
)

// Rank orders priorities high before medium before low.
func (p LinkPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// DiscoveredLink is a link seen in collector output that has not been
// collected yet.
type DiscoveredLink struct {
	URL      string       `json:"url" yaml:"url"`
	Type     LinkType     `json:"type" yaml:"type"`
	Priority LinkPriority `json:"priority" yaml:"priority"`
	FoundOn  string       `json:"found_on,omitempty" yaml:"found_on,omitempty"`
}

// SessionSnapshot is the exported form of a session, suitable for storage.
type SessionSnapshot struct {
	ID                   string                     `json:"id" yaml:"id"`
	Domain               string                     `json:"domain" yaml:"domain"`
	Status               SessionStatus              `json:"status" yaml:"status"`
	History              []ScraperResult            `json:"history" yaml:"history"`
	Pages                map[string]*MergedPageData `json:"pages" yaml:"pages"`
	Stats                SessionStats               `json:"stats" yaml:"stats"`
	Collectors           []string                   `json:"collectors,omitempty" yaml:"collectors,omitempty"`
	PreviouslyDiscovered []string                   `json:"previously_discovered,omitempty" yaml:"previously_discovered,omitempty"`
	CreatedAt            time.Time                  `json:"created_at" yaml:"created_at"`
	UpdatedAt            time.Time                  `json:"updated_at" yaml:"updated_at"`
}
