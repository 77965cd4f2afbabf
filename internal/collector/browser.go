package collector

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/model"
)

// BrowserConfig configures the headless browser collector.
type BrowserConfig struct {
	Config    `yaml:",inline" mapstructure:",squash"`
	Headless  bool `yaml:"headless" mapstructure:"headless"`
	NoSandbox bool `yaml:"no_sandbox" mapstructure:"no_sandbox"`
	// Bin overrides the browser binary rod would download or discover.
	Bin string `yaml:"bin" mapstructure:"bin"`
	// ControlURL attaches to a running browser instead of launching one.
	ControlURL string        `yaml:"control_url" mapstructure:"control_url"`
	Stealth    bool          `yaml:"stealth" mapstructure:"stealth"`
	NavTimeout time.Duration `yaml:"nav_timeout" mapstructure:"nav_timeout"`
	// StableWait is how long the DOM must stay unchanged before capture.
	StableWait time.Duration `yaml:"stable_wait" mapstructure:"stable_wait"`
}

// DefaultBrowserConfig renders two tabs at a time with stealth on.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Config: Config{
			Timeout:     5 * time.Minute,
			Concurrency: 2,
			PerPage:     6 * time.Second,
			Overhead:    3 * time.Second,
		},
		Headless:   true,
		NoSandbox:  true,
		Stealth:    true,
		NavTimeout: 30 * time.Second,
		StableWait: 300 * time.Millisecond,
	}
}

// Validate checks the browser-specific settings and fills defaults.
func (c *BrowserConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.NavTimeout < 0 || c.StableWait < 0 {
		return eris.New("browser collector: timeouts must not be negative")
	}
	d := DefaultBrowserConfig()
	if c.NavTimeout == 0 {
		c.NavTimeout = d.NavTimeout
	}
	if c.StableWait == 0 {
		c.StableWait = d.StableWait
	}
	return nil
}

// BrowserCollector renders pages in headless Chromium via rod so that
// script-built content reaches the extractors.
type BrowserCollector struct {
	*Base
}

// NewBrowserCollector validates cfg and builds the collector. The browser
// starts on Initialize.
func NewBrowserCollector(info Info, cfg BrowserConfig, pipeline *extract.Pipeline) (*BrowserCollector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(err, "collector %s", info.ID)
	}
	if pipeline == nil {
		return nil, eris.Errorf("collector %s: pipeline is required", info.ID)
	}
	s := &browserStrategy{cfg: cfg, pipeline: pipeline}
	base, err := NewBase(info, cfg.Config, s)
	if err != nil {
		return nil, err
	}
	s.id = base.Info().ID
	return &BrowserCollector{Base: base}, nil
}

type browserStrategy struct {
	id       string
	cfg      BrowserConfig
	pipeline *extract.Pipeline
	log      *zap.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (s *browserStrategy) Name() string { return "browser" }

func (s *browserStrategy) Setup(_ context.Context, cc Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = zap.L().With(zap.String("collector", s.id))
	if cc.Logger != nil {
		s.log = cc.Logger.With(zap.String("collector", s.id))
	}

	controlURL := s.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(s.cfg.Headless).
			NoSandbox(s.cfg.NoSandbox)
		if s.cfg.Bin != "" {
			l = l.Bin(s.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return eris.Wrap(err, "browser collector: launch")
		}
		controlURL = u
		s.launcher = l
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.killLauncher()
		return eris.Wrap(err, "browser collector: connect")
	}
	s.browser = b
	s.log.Info("browser connected", zap.String("control_url", controlURL))
	return nil
}

func (s *browserStrategy) Teardown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.browser != nil {
		if cerr := s.browser.Close(); cerr != nil {
			err = eris.Wrap(cerr, "browser collector: close")
		}
		s.browser = nil
	}
	s.killLauncher()
	return err
}

func (s *browserStrategy) killLauncher() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
}

// Healthy reports whether the browser still answers.
func (s *browserStrategy) Healthy() bool {
	s.mu.Lock()
	b := s.browser
	s.mu.Unlock()
	if b == nil {
		return false
	}
	_, err := b.Timeout(2 * time.Second).Version()
	return err == nil
}

func (s *browserStrategy) Collect(ctx context.Context, urls []string, opts ExecuteOptions, done func(model.PageResult)) ([]model.PageResult, error) {
	s.mu.Lock()
	b := s.browser
	s.mu.Unlock()
	if b == nil {
		return nil, eris.New("browser collector: browser not running")
	}

	pages := make([]model.PageResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			pages[i] = s.render(gctx, b, u, opts)
			done(pages[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil && !anySucceeded(pages) {
		return nil, eris.Wrap(err, "browser collector: run aborted")
	}
	return pages, nil
}

const navigationStatusJS = `() => {
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) return entries[0].responseStatus || 0;
	} catch (e) {}
	return 0;
}`

func (s *browserStrategy) render(ctx context.Context, b *rod.Browser, target string, opts ExecuteOptions) model.PageResult {
	start := time.Now()
	fail := func(err error, status int) model.PageResult {
		p := model.FailedPage(target, err)
		p.StatusCode = status
		p.DurationMS = time.Since(start).Milliseconds()
		return p
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fail(eris.Wrap(err, "browser collector: open tab"), 0)
	}
	defer func() { _ = page.Close() }()

	if s.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			s.log.Debug("stealth injection failed", zap.Error(err))
		}
	}

	p := page.Context(ctx).Timeout(s.cfg.NavTimeout)
	if err := p.Navigate(target); err != nil {
		return fail(eris.Wrap(err, "browser collector: navigate"), 0)
	}
	if err := p.WaitDOMStable(s.cfg.StableWait, 0.1); err != nil {
		s.log.Debug("dom did not settle", zap.String("url", target), zap.Error(err))
	}

	status := 0
	if res, err := p.Eval(navigationStatusJS); err == nil {
		status = res.Value.Int()
	}

	html, err := p.HTML()
	if err != nil {
		return fail(eris.Wrap(err, "browser collector: read html"), status)
	}
	if status >= 400 {
		return fail(eris.Errorf("browser collector: status %d", status), status)
	}

	data, err := s.pipeline.Extract(ctx, html, target, opts.Extract)
	if err != nil {
		return fail(err, status)
	}
	out := extract.ToPage(target, data)
	out.Success = true
	out.StatusCode = status
	out.Bytes = int64(len(html))
	out.DurationMS = time.Since(start).Milliseconds()
	return out
}
