package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/config"
	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/metrics"
	"github.com/sells-group/domain-intel/internal/store"
)

// appEnv holds everything the collect and serve commands share.
type appEnv struct {
	Store      store.Store // nil when persistence is disabled
	Manager    *lifecycle.Manager
	Metrics    *metrics.Metrics
	Pipeline   *extract.Pipeline
	Collectors []collector.Collector
}

// Close releases collector instances and the store.
func (e *appEnv) Close(ctx context.Context) {
	if err := e.Manager.CleanupAll(ctx); err != nil {
		zap.L().Warn("collector cleanup failed", zap.Error(err))
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the extraction pipeline, the enabled collectors and the
// lifecycle manager. The store is opened only when withStore is set.
func initEnv(ctx context.Context, c *config.Config, enabled []string, withStore bool) (*appEnv, error) {
	pipeline, err := extract.NewPipeline(c.Extract.CacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "init extraction pipeline")
	}
	collectors, err := buildCollectors(c, enabled, pipeline)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	env := &appEnv{
		Manager:    lifecycle.NewManager(c.Lifecycle, lifecycle.WithMetrics(m)),
		Metrics:    m,
		Pipeline:   pipeline,
		Collectors: collectors,
	}
	if withStore {
		st, err := initStore(ctx, c)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}
	return env, nil
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, &c.Store.Pool)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildCollectors constructs the collectors named in ids, in order.
func buildCollectors(c *config.Config, ids []string, pipeline *extract.Pipeline) ([]collector.Collector, error) {
	var out []collector.Collector
	seen := make(map[string]bool)
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		var (
			col collector.Collector
			err error
		)
		switch id {
		case "http":
			col, err = collector.NewHTTPCollector(collector.Info{
				ID:          "http",
				Name:        "HTTP fetcher",
				Description: "Fetches each URL directly with retries and per-host rate limits.",
			}, c.HTTP, pipeline)
		case "crawl":
			col, err = collector.NewCrawlCollector(collector.Info{
				ID:          "crawl",
				Name:        "Static crawler",
				Description: "Crawls from each URL and follows same-host links.",
			}, c.Crawl, pipeline)
		case "browser":
			col, err = collector.NewBrowserCollector(collector.Info{
				ID:          "browser",
				Name:        "Headless browser",
				Description: "Renders pages in Chromium before extraction.",
			}, c.Browser, pipeline)
		default:
			return nil, eris.Errorf("unknown collector %q", id)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "build collector %s", id)
		}
		out = append(out, col)
	}
	if len(out) == 0 {
		return nil, eris.New("no collectors enabled")
	}
	return out, nil
}

// splitList parses a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
