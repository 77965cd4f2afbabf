// Package session drives successive collector runs against one domain and
// merges their output into a per-URL record set.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/metrics"
	"github.com/sells-group/domain-intel/internal/model"
)

var (
	// ErrSessionCompleted rejects runs on a completed session.
	ErrSessionCompleted = eris.New("session: completed")
	// ErrRunInProgress rejects a run while another is still executing.
	ErrRunInProgress = eris.New("session: run in progress")
	// ErrUnknownCollector means the collector was never registered here.
	ErrUnknownCollector = eris.New("session: unknown collector")
)

// Option configures a Session.
type Option func(*Session)

// WithMetrics records run outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithID fixes the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

type registration struct {
	c  collector.Collector
	cc collector.Context
}

// Session is the single writer over its merged page map. Runs are
// sequential; reads may happen concurrently with a run.
type Session struct {
	id      string
	domain  string
	manager *lifecycle.Manager
	metrics *metrics.Metrics
	now     func() time.Time
	log     *zap.Logger

	running atomic.Bool

	mu         sync.RWMutex
	status     model.SessionStatus
	history    []model.ScraperResult
	pages      map[string]*model.MergedPageData
	order      []string
	stats      model.SessionStats
	collectors []registration
	previous   map[string]bool
	prevOrder  []string
	createdAt  time.Time
	updatedAt  time.Time
}

// New creates an active session for domain. Collector instances are taken
// from manager.
func New(domain string, manager *lifecycle.Manager, opts ...Option) (*Session, error) {
	s, err := build(domain, manager, opts...)
	if err != nil {
		return nil, err
	}
	s.metrics.IncSession(string(model.SessionActive))
	return s, nil
}

// build constructs a session without counting it as newly created.
func build(domain string, manager *lifecycle.Manager, opts ...Option) (*Session, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return nil, eris.New("session: domain is required")
	}
	if manager == nil {
		return nil, eris.New("session: lifecycle manager is required")
	}
	s := &Session{
		domain:   domain,
		manager:  manager,
		now:      time.Now,
		status:   model.SessionActive,
		pages:    make(map[string]*model.MergedPageData),
		previous: make(map[string]bool),
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.createdAt = s.now().UTC()
	s.updatedAt = s.createdAt
	s.log = zap.L().With(zap.String("session", s.id), zap.String("domain", domain))
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Domain returns the normalized session domain.
func (s *Session) Domain() string { return s.domain }

// Status returns the current status.
func (s *Session) Status() model.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Stats returns a copy of the cumulative stats.
func (s *Session) Stats() model.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.CollectorsUsed = append([]string(nil), st.CollectorsUsed...)
	return st
}

// Collectors lists registered collector ids in registration order.
func (s *Session) Collectors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.collectors))
	for _, r := range s.collectors {
		ids = append(ids, r.c.Info().ID)
	}
	return ids
}

// RegisterCollector makes c available to Run and hands it to the lifecycle
// manager. Registering the same id twice is a no-op.
func (s *Session) RegisterCollector(ctx context.Context, c collector.Collector, cc collector.Context) error {
	id := c.Info().ID
	if cc.SessionID == "" {
		cc.SessionID = s.id
	}
	if cc.Domain == "" {
		cc.Domain = s.domain
	}

	s.mu.Lock()
	for _, r := range s.collectors {
		if r.c.Info().ID == id {
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	if err := s.manager.Ensure(ctx, c, cc); err != nil {
		return eris.Wrapf(err, "session: register %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectors = append(s.collectors, registration{c: c, cc: cc})
	return nil
}

// SetPreviouslyDiscovered records URLs known from earlier work. They never
// show up as undiscovered links.
func (s *Session) SetPreviouslyDiscovered(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = make(map[string]bool, len(urls))
	s.prevOrder = s.prevOrder[:0]
	for _, u := range urls {
		key := urlKey(u)
		if key == "" || s.previous[key] {
			continue
		}
		s.previous[key] = true
		s.prevOrder = append(s.prevOrder, key)
	}
}

// Run executes one collector over urls and merges its successful pages. A
// run that returns an error leaves history and merged pages untouched and
// only bumps FailedRuns.
func (s *Session) Run(ctx context.Context, collectorID string, urls []string, opts collector.ExecuteOptions) (*model.ScraperResult, error) {
	s.mu.RLock()
	status := s.status
	reg, found := s.registration(collectorID)
	s.mu.RUnlock()

	if status == model.SessionCompleted {
		return nil, eris.Wrapf(ErrSessionCompleted, "session %s", s.id)
	}
	if !found {
		return nil, eris.Wrapf(ErrUnknownCollector, "session %s: %s", s.id, collectorID)
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, eris.Wrapf(ErrRunInProgress, "session %s", s.id)
	}
	defer s.running.Store(false)
	// Complete holds the running flag too, so the status cannot change
	// from here until the merge is done.
	if s.Status() == model.SessionCompleted {
		return nil, eris.Wrapf(ErrSessionCompleted, "session %s", s.id)
	}

	// The manager may have evicted an idle instance since registration.
	if err := s.manager.Ensure(ctx, reg.c, reg.cc); err != nil {
		s.recordFailure(collectorID, 0)
		return nil, eris.Wrapf(err, "session %s: re-register %s", s.id, collectorID)
	}

	started := s.now()
	res, err := lifecycle.WithLifecycle(ctx, s.manager, collectorID,
		func(ctx context.Context, c collector.Collector) (*model.ScraperResult, error) {
			return c.Execute(ctx, urls, opts)
		})
	elapsed := s.now().Sub(started)
	if err != nil {
		s.recordFailure(collectorID, elapsed)
		s.log.Warn("run failed", zap.String("collector", collectorID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	touched := s.apply(*res)
	s.recomputeStats()
	s.mu.Unlock()

	s.metrics.ObserveRun(collectorID, res.Success, elapsed, res.Stats.Succeeded, res.Stats.Failed)
	s.log.Info("run merged",
		zap.String("collector", collectorID),
		zap.Int("pages", len(res.Pages)),
		zap.Int("merged", touched),
		zap.Int("new_links", len(res.DiscoveredLinks)),
	)
	return res, nil
}

// registration looks up a collector. Callers hold s.mu.
func (s *Session) registration(id string) (registration, bool) {
	for _, r := range s.collectors {
		if r.c.Info().ID == id {
			return r, true
		}
	}
	return registration{}, false
}

func (s *Session) recordFailure(collectorID string, elapsed time.Duration) {
	s.mu.Lock()
	s.stats.FailedRuns++
	s.mu.Unlock()
	s.metrics.ObserveRun(collectorID, false, elapsed, 0, 0)
}

// apply appends res to the history and merges its successful pages,
// rescoring each touched record. Callers hold s.mu.
func (s *Session) apply(res model.ScraperResult) int {
	now := s.now().UTC()
	s.history = append(s.history, res)

	touched := 0
	for _, p := range res.Pages {
		if !p.Success {
			continue
		}
		key := urlKey(p.URL)
		if key == "" {
			continue
		}
		rec, ok := s.pages[key]
		if !ok {
			rec = &model.MergedPageData{URL: key, FirstSeenAt: now}
			s.pages[key] = rec
			s.order = append(s.order, key)
		}
		mergePage(rec, p, res.CollectorID, now)
		rec.QualityScore = QualityScore(rec)
		rec.CompletenessScore = CompletenessScore(rec)
		touched++
	}
	s.updatedAt = now
	return touched
}

// Complete marks the session completed. Completed is terminal. It fails
// with ErrRunInProgress while a run is executing.
func (s *Session) Complete() error {
	if !s.running.CompareAndSwap(false, true) {
		return eris.Wrapf(ErrRunInProgress, "session %s", s.id)
	}
	defer s.running.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == model.SessionCompleted {
		return nil
	}
	s.status = model.SessionCompleted
	s.updatedAt = s.now().UTC()
	s.metrics.IncSession(string(model.SessionCompleted))
	s.log.Info("session completed",
		zap.Int("pages", len(s.pages)),
		zap.Int("runs", s.stats.TotalRuns),
	)
	return nil
}

// Page returns a copy of the merged record for rawURL.
func (s *Session) Page(rawURL string) (*model.MergedPageData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.pages[urlKey(rawURL)]
	if !ok {
		return nil, false
	}
	return clonePage(rec), true
}

// Pages returns copies of all merged records in first-seen order.
func (s *Session) Pages() []*model.MergedPageData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.MergedPageData, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, clonePage(s.pages[key]))
	}
	return out
}

// History returns the run results in execution order.
func (s *Session) History() []model.ScraperResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ScraperResult(nil), s.history...)
}
