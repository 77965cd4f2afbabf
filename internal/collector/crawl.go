package collector

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/model"
)

// CrawlConfig configures the colly-backed crawl collector.
type CrawlConfig struct {
	Config         `yaml:",inline" mapstructure:",squash"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// MaxDepth is how many hops past each seed to follow same-host links.
	// Followed pages only contribute links to their seed.
	MaxDepth    int           `yaml:"max_depth" mapstructure:"max_depth"`
	Delay       time.Duration `yaml:"delay" mapstructure:"delay"`
	RandomDelay time.Duration `yaml:"random_delay" mapstructure:"random_delay"`
}

// DefaultCrawlConfig follows one hop with modest parallelism.
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Config: Config{
			Timeout:     3 * time.Minute,
			Concurrency: 4,
			PerPage:     2 * time.Second,
			Overhead:    200 * time.Millisecond,
		},
		UserAgent:      DefaultUserAgent,
		RequestTimeout: 20 * time.Second,
		MaxDepth:       1,
	}
}

// Validate checks the crawl-specific settings and fills defaults.
func (c *CrawlConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.MaxDepth < 0 || c.Delay < 0 || c.RandomDelay < 0 {
		return eris.New("crawl collector: depth and delays must not be negative")
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultCrawlConfig().RequestTimeout
	}
	return nil
}

// CrawlOption customizes a CrawlCollector.
type CrawlOption func(*crawlStrategy)

// WithCrawlTransport routes colly's requests through rt.
func WithCrawlTransport(rt http.RoundTripper) CrawlOption {
	return func(s *crawlStrategy) { s.transport = rt }
}

// CrawlCollector fetches seeds with colly and widens link discovery by
// following same-host links up to MaxDepth.
type CrawlCollector struct {
	*Base
}

// NewCrawlCollector validates cfg and builds the collector.
func NewCrawlCollector(info Info, cfg CrawlConfig, pipeline *extract.Pipeline, opts ...CrawlOption) (*CrawlCollector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(err, "collector %s", info.ID)
	}
	if pipeline == nil {
		return nil, eris.Errorf("collector %s: pipeline is required", info.ID)
	}
	s := &crawlStrategy{cfg: cfg, pipeline: pipeline}
	for _, o := range opts {
		o(s)
	}
	base, err := NewBase(info, cfg.Config, s)
	if err != nil {
		return nil, err
	}
	s.id = base.Info().ID
	return &CrawlCollector{Base: base}, nil
}

type crawlStrategy struct {
	id        string
	cfg       CrawlConfig
	pipeline  *extract.Pipeline
	transport http.RoundTripper
	log       *zap.Logger
}

func (s *crawlStrategy) Name() string { return "crawl" }

func (s *crawlStrategy) Setup(_ context.Context, cc Context) error {
	s.log = zap.L().With(zap.String("collector", s.id))
	if cc.Logger != nil {
		s.log = cc.Logger.With(zap.String("collector", s.id))
	}
	return nil
}

func (s *crawlStrategy) Teardown(context.Context) error { return nil }

// crawlRun is the mutable state of one Collect call, shared by colly
// callbacks running on request goroutines.
type crawlRun struct {
	mu     sync.Mutex
	pages  map[string]model.PageResult
	links  map[string][]string
	seen   map[string]bool
	closed bool
}

// record stores the result for seed and reports whether the run was still
// open to accept it.
func (r *crawlRun) record(seed string, page model.PageResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.pages[seed] = page
	return true
}

func (r *crawlRun) addLink(seed, link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.links[seed] = append(r.links[seed], link)
}

// markVisit reports whether link is new to this run.
func (r *crawlRun) markVisit(link string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[link] {
		return false
	}
	r.seen[link] = true
	return true
}

func (s *crawlStrategy) Collect(ctx context.Context, urls []string, opts ExecuteOptions, done func(model.PageResult)) ([]model.PageResult, error) {
	run := &crawlRun{
		pages: make(map[string]model.PageResult, len(urls)),
		links: make(map[string][]string, len(urls)),
		seen:  make(map[string]bool, len(urls)),
	}

	hosts := make([]string, 0, len(urls))
	for _, u := range urls {
		run.seen[u] = true
		if parsed, err := url.Parse(u); err == nil {
			hosts = append(hosts, parsed.Hostname())
		}
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowedDomains(hosts...),
		colly.MaxDepth(s.cfg.MaxDepth+1),
	)
	if s.transport != nil {
		c.WithTransport(s.transport)
	}
	c.SetRequestTimeout(s.cfg.RequestTimeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.cfg.Concurrency,
		Delay:       s.cfg.Delay,
		RandomDelay: s.cfg.RandomDelay,
	}); err != nil {
		return nil, eris.Wrap(err, "crawl collector: set limits")
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Ctx.Put("started", time.Now())
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		seed := e.Request.Ctx.Get("seed")
		link := e.Request.AbsoluteURL(e.Attr("href"))
		norm, ok := NormalizeURL(link)
		if !ok {
			return
		}
		run.addLink(seed, norm)
		if e.Request.Depth > s.cfg.MaxDepth || !sameHost(norm, e.Request.URL) {
			return
		}
		if run.markVisit(norm) {
			_ = e.Request.Visit(norm)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		if r.Request.Depth > 1 {
			return
		}
		seed := r.Ctx.Get("seed")
		page := s.pageFrom(ctx, seed, r, opts)
		if run.record(seed, page) {
			done(page)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r.Request.Depth > 1 {
			s.log.Debug("follow failed", zap.Stringer("url", r.Request.URL), zap.Error(err))
			return
		}
		seed := r.Ctx.Get("seed")
		page := model.FailedPage(seed, err)
		page.StatusCode = r.StatusCode
		page.DurationMS = elapsedMS(r.Ctx)
		if run.record(seed, page) {
			done(page)
		}
	})

	for _, u := range urls {
		cctx := colly.NewContext()
		cctx.Put("seed", u)
		if err := c.Request("GET", u, nil, cctx, nil); err != nil {
			page := model.FailedPage(u, err)
			if run.record(u, page) {
				done(page)
			}
		}
	}

	finished := make(chan struct{})
	go func() {
		c.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		s.log.Warn("crawl cut short", zap.Error(ctx.Err()))
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	run.closed = true
	out := make([]model.PageResult, 0, len(run.pages))
	for _, u := range urls {
		p, ok := run.pages[u]
		if !ok {
			continue
		}
		if p.Success {
			p.Links = extract.UnionStrings(p.Links, run.links[u])
		}
		out = append(out, p)
	}
	if len(out) == 0 && ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "crawl collector: run aborted")
	}
	return out, nil
}

func (s *crawlStrategy) pageFrom(ctx context.Context, seed string, r *colly.Response, opts ExecuteOptions) model.PageResult {
	body, err := decodeBody(r.Headers.Get("Content-Encoding"), r.Body, 0)
	if err != nil {
		body = r.Body
	}
	resp := &http.Response{StatusCode: r.StatusCode, Header: http.Header{}}
	if r.Headers != nil {
		resp.Header = *r.Headers
	}
	if blocked, kind := DetectBlock(resp, body); blocked {
		page := model.FailedPage(seed, eris.Errorf("crawl collector: blocked (%s)", kind))
		page.StatusCode = r.StatusCode
		return page
	}

	data, err := s.pipeline.Extract(ctx, string(body), seed, opts.Extract)
	if err != nil {
		page := model.FailedPage(seed, err)
		page.StatusCode = r.StatusCode
		page.Bytes = int64(len(body))
		return page
	}
	page := extract.ToPage(seed, data)
	page.Success = true
	page.StatusCode = r.StatusCode
	page.Bytes = int64(len(body))
	page.DurationMS = elapsedMS(r.Ctx)
	return page
}

func elapsedMS(c *colly.Context) int64 {
	if started, ok := c.GetAny("started").(time.Time); ok {
		return time.Since(started).Milliseconds()
	}
	return 0
}

func sameHost(link string, base *url.URL) bool {
	u, err := url.Parse(link)
	if err != nil || base == nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), base.Hostname())
}
