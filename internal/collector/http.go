package collector

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/resilience"
)

// DefaultUserAgent identifies the collectors to the sites they visit.
const DefaultUserAgent = "Mozilla/5.0 (compatible; DomainIntel/1.0)"

// HTTPConfig configures the plain HTTP collector.
type HTTPConfig struct {
	Config         `yaml:",inline" mapstructure:",squash"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	// RatePerHost is requests per second per host. Zero disables limiting.
	RatePerHost      float64       `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Burst            int           `yaml:"burst" mapstructure:"burst"`
	MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset" mapstructure:"breaker_reset"`
	DetectBlocks     bool          `yaml:"detect_blocks" mapstructure:"detect_blocks"`
}

// DefaultHTTPConfig returns settings suited to polite site collection.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Config: Config{
			Timeout:     2 * time.Minute,
			Concurrency: 4,
			PerPage:     1500 * time.Millisecond,
			Overhead:    100 * time.Millisecond,
		},
		UserAgent:        DefaultUserAgent,
		RequestTimeout:   15 * time.Second,
		MaxBodyBytes:     2 << 20,
		RatePerHost:      2,
		Burst:            2,
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerReset:     30 * time.Second,
		DetectBlocks:     true,
	}
}

// Validate checks the HTTP-specific settings and fills defaults.
func (c *HTTPConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.RatePerHost < 0 || c.Burst < 0 || c.MaxAttempts < 0 || c.MaxBodyBytes < 0 {
		return eris.New("http collector: limits must not be negative")
	}
	d := DefaultHTTPConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.RatePerHost > 0 && c.Burst == 0 {
		c.Burst = 1
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	return nil
}

// HTTPOption customizes an HTTPCollector.
type HTTPOption func(*httpStrategy)

// WithHTTPClient replaces the client built from the config.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *httpStrategy) { s.client = c }
}

// HTTPCollector fetches pages with net/http and runs them through the
// extraction pipeline.
type HTTPCollector struct {
	*Base
	strategy *httpStrategy
}

// NewHTTPCollector validates cfg and builds the collector.
func NewHTTPCollector(info Info, cfg HTTPConfig, pipeline *extract.Pipeline, opts ...HTTPOption) (*HTTPCollector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(err, "collector %s", info.ID)
	}
	if pipeline == nil {
		return nil, eris.Errorf("collector %s: pipeline is required", info.ID)
	}
	s := &httpStrategy{cfg: cfg, pipeline: pipeline}
	for _, o := range opts {
		o(s)
	}
	base, err := NewBase(info, cfg.Config, s)
	if err != nil {
		return nil, err
	}
	s.id = base.Info().ID
	return &HTTPCollector{Base: base, strategy: s}, nil
}

// BreakerStates reports the circuit state of every host touched so far.
func (c *HTTPCollector) BreakerStates() map[string]resilience.CircuitState {
	c.strategy.mu.Lock()
	hb := c.strategy.breakers
	c.strategy.mu.Unlock()
	if hb == nil {
		return nil
	}
	return hb.States()
}

type httpStrategy struct {
	id       string
	cfg      HTTPConfig
	pipeline *extract.Pipeline
	client   *http.Client
	log      *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers *resilience.HostBreakers
}

func (s *httpStrategy) Name() string { return "http" }

func (s *httpStrategy) Setup(_ context.Context, cc Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = zap.L().With(zap.String("collector", s.id))
	if cc.Logger != nil {
		s.log = cc.Logger.With(zap.String("collector", s.id))
	}
	if s.client == nil {
		s.client = &http.Client{
			Timeout: s.cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: s.cfg.Concurrency,
			},
		}
	}
	s.limiters = make(map[string]*rate.Limiter)
	s.breakers = resilience.NewHostBreakers(resilience.CircuitConfig{
		FailureThreshold: s.cfg.BreakerThreshold,
		ResetTimeout:     s.cfg.BreakerReset,
		ShouldTrip:       resilience.IsTransient,
		OnStateChange: func(host string, from, to resilience.CircuitState) {
			s.log.Warn("circuit state change",
				zap.String("host", host),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	return nil
}

func (s *httpStrategy) Teardown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
	s.limiters = nil
	return nil
}

func (s *httpStrategy) Collect(ctx context.Context, urls []string, opts ExecuteOptions, done func(model.PageResult)) ([]model.PageResult, error) {
	pages := make([]model.PageResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			pages[i] = s.collectPage(gctx, u, opts)
			done(pages[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil && !anySucceeded(pages) {
		return nil, eris.Wrap(err, "http collector: run aborted")
	}
	return pages, nil
}

type fetched struct {
	status int
	body   []byte
}

func (s *httpStrategy) collectPage(ctx context.Context, target string, opts ExecuteOptions) model.PageResult {
	start := time.Now()

	if err := s.wait(ctx, target); err != nil {
		return model.FailedPage(target, err)
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    s.cfg.MaxAttempts,
		InitialBackoff: s.cfg.InitialBackoff,
		OnRetry:        resilience.RetryLogger(s.id, target),
	}
	breaker := s.breakerFor(target)
	var lastStatus int
	f, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (fetched, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (fetched, error) {
			f, err := s.fetch(ctx, target)
			lastStatus = f.status
			return f, err
		})
	})
	if err != nil {
		page := model.FailedPage(target, err)
		page.StatusCode = lastStatus
		page.DurationMS = time.Since(start).Milliseconds()
		return page
	}

	data, err := s.pipeline.Extract(ctx, string(f.body), target, opts.Extract)
	if err != nil {
		page := model.FailedPage(target, err)
		page.StatusCode = f.status
		page.Bytes = int64(len(f.body))
		page.DurationMS = time.Since(start).Milliseconds()
		return page
	}

	page := extract.ToPage(target, data)
	page.Success = true
	page.StatusCode = f.status
	page.Bytes = int64(len(f.body))
	page.DurationMS = time.Since(start).Milliseconds()
	return page
}

func (s *httpStrategy) fetch(ctx context.Context, target string) (fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fetched{}, eris.Wrap(err, "http collector: create request")
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "br, gzip, deflate")

	resp, err := s.client.Do(req)
	if err != nil {
		return fetched{}, eris.Wrap(err, "http collector: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		return fetched{status: resp.StatusCode}, resilience.NewTransientError(eris.Wrap(err, "http collector: read body"), 0)
	}
	body, err := decodeBody(resp.Header.Get("Content-Encoding"), raw, s.cfg.MaxBodyBytes)
	if err != nil {
		return fetched{status: resp.StatusCode}, err
	}

	if s.cfg.DetectBlocks {
		if blocked, kind := DetectBlock(resp, body); blocked {
			return fetched{status: resp.StatusCode}, eris.Errorf("http collector: blocked (%s)", kind)
		}
	}
	if err := resilience.StatusError(target, resp.StatusCode); err != nil {
		return fetched{status: resp.StatusCode}, err
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isMarkup(ct) {
		return fetched{status: resp.StatusCode}, eris.Errorf("http collector: unsupported content type %q", ct)
	}
	return fetched{status: resp.StatusCode, body: body}, nil
}

func (s *httpStrategy) wait(ctx context.Context, target string) error {
	if s.cfg.RatePerHost <= 0 {
		return nil
	}
	host := hostOf(target)
	s.mu.Lock()
	lim, ok := s.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.RatePerHost), s.cfg.Burst)
		if s.limiters != nil {
			s.limiters[host] = lim
		}
	}
	s.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return eris.Wrap(err, "http collector: rate limit wait")
	}
	return nil
}

func (s *httpStrategy) breakerFor(target string) *resilience.CircuitBreaker {
	s.mu.Lock()
	hb := s.breakers
	s.mu.Unlock()
	return hb.ForURL(target)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(u.Host)
}

func isMarkup(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml") || strings.HasPrefix(ct, "text/")
}

func anySucceeded(pages []model.PageResult) bool {
	for _, p := range pages {
		if p.Success {
			return true
		}
	}
	return false
}
