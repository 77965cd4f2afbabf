package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/model"
)

// Strategy is the part of a collector that actually fetches pages. Base
// handles everything else.
type Strategy interface {
	Name() string
	Setup(ctx context.Context, cc Context) error
	// Collect returns one result per URL it managed to attempt and calls
	// done after each page. done is safe for concurrent use.
	Collect(ctx context.Context, urls []string, opts ExecuteOptions, done func(model.PageResult)) ([]model.PageResult, error)
	Teardown(ctx context.Context) error
}

// HealthChecker is implemented by strategies that can go stale between runs.
type HealthChecker interface {
	Healthy() bool
}

// Config holds the settings every collector family shares.
type Config struct {
	Include []string `yaml:"include" mapstructure:"include"`
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
	// Timeout bounds one Execute call. Zero means no limit.
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	// PerPage and Overhead feed EstimateTime.
	PerPage  time.Duration `yaml:"per_page" mapstructure:"per_page"`
	Overhead time.Duration `yaml:"overhead" mapstructure:"overhead"`
}

// Validate rejects negative settings and fills zero values.
func (c *Config) Validate() error {
	if c.Timeout < 0 || c.PerPage < 0 || c.Overhead < 0 {
		return eris.New("collector: durations must not be negative")
	}
	if c.Concurrency < 0 {
		return eris.New("collector: concurrency must not be negative")
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.PerPage == 0 {
		c.PerPage = 2 * time.Second
	}
	return nil
}

// Base implements Collector around a Strategy.
type Base struct {
	info     Info
	cfg      Config
	strategy Strategy
	matcher  *PathMatcher

	mu          sync.Mutex
	initialized bool
	reporter    Reporter
	log         *zap.Logger

	busy atomic.Bool
}

// NewBase validates cfg and wraps strategy.
func NewBase(info Info, cfg Config, strategy Strategy) (*Base, error) {
	if info.ID == "" {
		return nil, eris.New("collector: id is required")
	}
	if strategy == nil {
		return nil, eris.Errorf("collector %s: strategy is required", info.ID)
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(err, "collector %s", info.ID)
	}
	if info.Name == "" {
		info.Name = info.ID
	}
	info.Strategy = strategy.Name()
	return &Base{
		info:     info,
		cfg:      cfg,
		strategy: strategy,
		matcher:  NewPathMatcher(cfg.Include, cfg.Exclude),
		reporter: NopReporter{},
		log:      zap.L().With(zap.String("collector", info.ID)),
	}, nil
}

// Info returns the collector's identity.
func (b *Base) Info() Info { return b.info }

// Initialize runs the strategy's setup once.
func (b *Base) Initialize(ctx context.Context, cc Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	if cc.Reporter != nil {
		b.reporter = cc.Reporter
	}
	if cc.Logger != nil {
		b.log = cc.Logger.With(zap.String("collector", b.info.ID))
	}
	if err := b.strategy.Setup(ctx, cc); err != nil {
		return eris.Wrapf(err, "collector %s: setup", b.info.ID)
	}
	b.initialized = true
	b.log.Debug("collector initialized", zap.String("strategy", b.info.Strategy))
	return nil
}

// Cleanup tears the strategy down. The instance can be initialized again.
func (b *Base) Cleanup(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil
	}
	b.initialized = false
	if err := b.strategy.Teardown(ctx); err != nil {
		return eris.Wrapf(err, "collector %s: teardown", b.info.ID)
	}
	return nil
}

// CanHandle applies the configured include and exclude patterns.
func (b *Base) CanHandle(rawURL string) bool {
	return b.matcher.Allows(rawURL)
}

// EstimateTime is Overhead plus PerPage for each wave of Concurrency pages.
func (b *Base) EstimateTime(urlCount int) time.Duration {
	if urlCount <= 0 {
		return 0
	}
	waves := (urlCount + b.cfg.Concurrency - 1) / b.cfg.Concurrency
	return b.cfg.Overhead + time.Duration(waves)*b.cfg.PerPage
}

// Status reports readiness. A busy instance is still ready.
func (b *Base) Status() Status {
	b.mu.Lock()
	initialized := b.initialized
	b.mu.Unlock()

	healthy := true
	if hc, ok := b.strategy.(HealthChecker); ok {
		healthy = hc.Healthy()
	}
	return Status{
		Ready:       initialized && healthy,
		Busy:        b.busy.Load(),
		Initialized: initialized,
	}
}

// Execute collects urls through the strategy. It never queues: a second call
// while one is running fails with ErrAlreadyBusy.
func (b *Base) Execute(ctx context.Context, urls []string, opts ExecuteOptions) (*model.ScraperResult, error) {
	b.mu.Lock()
	initialized, reporter, log := b.initialized, b.reporter, b.log
	b.mu.Unlock()
	if !initialized {
		return nil, eris.Wrapf(ErrNotInitialized, "collector %s", b.info.ID)
	}
	if !b.busy.CompareAndSwap(false, true) {
		return nil, eris.Wrapf(ErrAlreadyBusy, "collector %s", b.info.ID)
	}
	defer b.busy.Store(false)

	started := time.Now()
	validation := ValidateURLs(urls)
	if len(validation.Valid) == 0 {
		return nil, eris.Wrapf(ErrValidation, "collector %s: %d urls rejected", b.info.ID, len(validation.Invalid))
	}
	total := len(validation.Valid)

	reporter.Report(Progress{
		Total:       total,
		Message:     fmt.Sprintf("starting %s on %d urls", b.info.Name, total),
		CollectorID: b.info.ID,
	})

	timeout := b.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Strategies may still call done from stragglers after Collect returns
	// on a timeout; those calls are dropped.
	var (
		gate      sync.Mutex
		closed    bool
		completed int
	)
	done := func(p model.PageResult) {
		gate.Lock()
		defer gate.Unlock()
		if closed {
			return
		}
		completed++
		reporter.Report(Progress{
			Current:     completed,
			Total:       total,
			Message:     p.URL,
			CollectorID: b.info.ID,
		})
	}

	pages, err := b.strategy.Collect(runCtx, validation.Valid, opts, done)
	gate.Lock()
	closed = true
	gate.Unlock()
	if err != nil {
		log.Warn("collection failed", zap.Int("urls", total), zap.Error(err))
		return nil, &CollectionError{CollectorID: b.info.ID, Err: err}
	}

	pages = reconcile(validation.Valid, pages)
	finished := time.Now()
	stats := computeStats(pages, finished.Sub(started))

	result := &model.ScraperResult{
		ID:              uuid.NewString(),
		CollectorID:     b.info.ID,
		CollectorName:   b.info.Name,
		Strategy:        b.info.Strategy,
		Pages:           pages,
		Stats:           stats,
		DiscoveredLinks: newLinks(validation.Valid, pages),
		Validation:      validation,
		Success:         stats.Succeeded > 0,
		StartedAt:       started.UTC(),
		CompletedAt:     finished.UTC(),
	}
	for _, p := range pages {
		if !p.Success && p.Error != "" {
			result.Errors = append(result.Errors, p.URL+": "+p.Error)
		}
	}

	reporter.Report(Progress{
		Current:     total,
		Total:       total,
		Message:     fmt.Sprintf("complete: %d/%d pages succeeded", stats.Succeeded, total),
		CollectorID: b.info.ID,
	})
	log.Info("collection complete",
		zap.Int("attempted", stats.Attempted),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int64("bytes", stats.TotalBytes),
		zap.Int64("duration_ms", stats.DurationMS),
	)
	return result, nil
}

// ValidateURLs keeps absolute http(s) URLs, dropping duplicates. Rejected
// entries are kept verbatim in Invalid.
func ValidateURLs(urls []string) model.URLValidation {
	var v model.URLValidation
	seen := make(map[string]bool, len(urls))
	for _, raw := range urls {
		norm, ok := NormalizeURL(raw)
		if !ok {
			v.Invalid = append(v.Invalid, raw)
			continue
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		v.Valid = append(v.Valid, norm)
	}
	return v
}

// NormalizeURL trims raw, lowercases scheme and host and drops the fragment.
// It reports false for anything that is not an absolute http(s) URL.
func NormalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// reconcile returns exactly one page per requested URL, in request order.
func reconcile(urls []string, pages []model.PageResult) []model.PageResult {
	byURL := make(map[string]model.PageResult, len(pages))
	for _, p := range pages {
		key := p.URL
		if norm, ok := NormalizeURL(p.URL); ok {
			key = norm
		}
		if _, dup := byURL[key]; !dup {
			p.URL = key
			byURL[key] = p
		}
	}
	out := make([]model.PageResult, 0, len(urls))
	for _, u := range urls {
		p, ok := byURL[u]
		if !ok {
			p = model.FailedPage(u, eris.New("no result returned"))
		}
		out = append(out, p)
	}
	return out
}

func computeStats(pages []model.PageResult, elapsed time.Duration) model.RunStats {
	s := model.RunStats{Attempted: len(pages), DurationMS: elapsed.Milliseconds()}
	var pageMS int64
	for i := range pages {
		p := &pages[i]
		pageMS += p.DurationMS
		s.TotalBytes += p.Bytes
		if p.Success {
			s.Succeeded++
			s.DataPoints += p.DataPoints()
		} else {
			s.Failed++
		}
	}
	if s.Attempted > 0 {
		s.AvgTimePerPageMS = float64(pageMS) / float64(s.Attempted)
		s.SuccessRate = float64(s.Succeeded) / float64(s.Attempted) * 100
	}
	return s
}

// newLinks collects links from successful pages that were not part of the
// request, normalized and deduplicated in first-seen order.
func newLinks(requested []string, pages []model.PageResult) []string {
	seen := make(map[string]bool, len(requested))
	for _, u := range requested {
		seen[u] = true
	}
	var out []string
	for _, p := range pages {
		if !p.Success {
			continue
		}
		for _, l := range p.Links {
			norm, ok := NormalizeURL(l)
			if !ok || seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, norm)
		}
	}
	return out
}
