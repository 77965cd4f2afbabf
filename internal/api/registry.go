package api

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/session"
	"github.com/sells-group/domain-intel/internal/store"
)

var errSessionNotFound = eris.New("api: session not found")

// registry caches live sessions by id and persists them after changes.
type registry struct {
	deps Deps
	log  *zap.Logger

	mu   sync.Mutex
	live map[string]*session.Session
}

func newRegistry(deps Deps, log *zap.Logger) *registry {
	return &registry{deps: deps, log: log, live: make(map[string]*session.Session)}
}

func (r *registry) create(ctx context.Context, domain string, previous []string) (*session.Session, error) {
	s, err := session.New(domain, r.deps.Manager, session.WithMetrics(r.deps.Metrics))
	if err != nil {
		return nil, err
	}
	if err := r.attach(ctx, s); err != nil {
		return nil, err
	}
	s.SetPreviouslyDiscovered(previous)

	r.mu.Lock()
	r.live[s.ID()] = s
	r.mu.Unlock()
	return s, r.save(ctx, s)
}

// get returns a live session, restoring it from the store when needed.
func (r *registry) get(ctx context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.live[id]; ok {
		return s, nil
	}
	if r.deps.Store == nil {
		return nil, eris.Wrapf(errSessionNotFound, "session %s", id)
	}

	snap, err := r.deps.Store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(errSessionNotFound, "session %s", id)
	}
	if err != nil {
		return nil, err
	}
	s, err := session.Restore(snap, r.deps.Manager, session.WithMetrics(r.deps.Metrics))
	if err != nil {
		return nil, err
	}
	if err := r.attach(ctx, s); err != nil {
		return nil, err
	}
	r.live[id] = s
	return s, nil
}

func (r *registry) remove(ctx context.Context, id string) error {
	r.mu.Lock()
	_, live := r.live[id]
	delete(r.live, id)
	r.mu.Unlock()

	if r.deps.Store == nil {
		if !live {
			return eris.Wrapf(errSessionNotFound, "session %s", id)
		}
		return nil
	}
	err := r.deps.Store.DeleteSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		if live {
			return nil
		}
		return eris.Wrapf(errSessionNotFound, "session %s", id)
	}
	return err
}

// snapshots lists live sessions when no store is configured.
func (r *registry) snapshots() []store.SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.SessionSummary, 0, len(r.live))
	for _, s := range r.live {
		snap := s.Export()
		out = append(out, store.SessionSummary{
			ID:        snap.ID,
			Domain:    snap.Domain,
			Status:    snap.Status,
			Pages:     len(snap.Pages),
			Runs:      len(snap.History),
			CreatedAt: snap.CreatedAt,
			UpdatedAt: snap.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *registry) attach(ctx context.Context, s *session.Session) error {
	for _, c := range r.deps.Collectors {
		cc := collector.Context{
			Reporter: collector.LogReporter{Log: r.log},
			Logger:   r.log.With(zap.String("collector", c.Info().ID)),
		}
		if err := s.RegisterCollector(ctx, c, cc); err != nil {
			return err
		}
	}
	return nil
}

func (r *registry) save(ctx context.Context, s *session.Session) error {
	if r.deps.Store == nil {
		return nil
	}
	if err := r.deps.Store.SaveSession(ctx, s.Export()); err != nil {
		r.log.Error("save session failed", zap.String("session", s.ID()), zap.Error(err))
		return err
	}
	return nil
}
