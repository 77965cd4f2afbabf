package session

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/model"
)

// Export returns a deep copy of the session state.
func (s *Session) Export() *model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &model.SessionSnapshot{
		ID:                   s.id,
		Domain:               s.domain,
		Status:               s.status,
		History:              cloneHistory(s.history),
		Pages:                make(map[string]*model.MergedPageData, len(s.pages)),
		Stats:                s.stats,
		PreviouslyDiscovered: slices.Clone(s.prevOrder),
		CreatedAt:            s.createdAt,
		UpdatedAt:            s.updatedAt,
	}
	snap.Stats.CollectorsUsed = slices.Clone(s.stats.CollectorsUsed)
	for key, rec := range s.pages {
		snap.Pages[key] = clonePage(rec)
	}
	for _, r := range s.collectors {
		snap.Collectors = append(snap.Collectors, r.c.Info().ID)
	}
	return snap
}

// Restore rebuilds a session from a snapshot. Collectors are not restored;
// they must be registered again before further runs.
func Restore(snap *model.SessionSnapshot, manager *lifecycle.Manager, opts ...Option) (*Session, error) {
	if snap == nil {
		return nil, eris.New("session: nil snapshot")
	}
	id := snap.ID
	if id == "" {
		id = uuid.NewString()
	}
	opts = append(opts, WithID(id))
	s, err := build(snap.Domain, manager, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "session: restore %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Status != "" {
		s.status = snap.Status
	}
	s.history = cloneHistory(snap.History)
	for _, res := range s.history {
		for _, p := range res.Pages {
			key := urlKey(p.URL)
			rec, ok := snap.Pages[key]
			if !ok || !p.Success || s.pages[key] != nil {
				continue
			}
			s.pages[key] = clonePage(rec)
			s.order = append(s.order, key)
		}
	}
	// Pages not traceable to history still belong to the session.
	for _, key := range slices.Sorted(maps.Keys(snap.Pages)) {
		if rec := snap.Pages[key]; s.pages[key] == nil && rec != nil {
			s.pages[key] = clonePage(rec)
			s.order = append(s.order, key)
		}
	}
	for _, u := range snap.PreviouslyDiscovered {
		if key := urlKey(u); key != "" && !s.previous[key] {
			s.previous[key] = true
			s.prevOrder = append(s.prevOrder, key)
		}
	}
	s.stats.FailedRuns = snap.Stats.FailedRuns
	s.recomputeStats()
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	s.updatedAt = latest(snap.UpdatedAt, s.createdAt)
	s.log.Debug("session restored", zap.Int("pages", len(s.pages)), zap.Int("runs", len(s.history)))
	return s, nil
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func cloneHistory(in []model.ScraperResult) []model.ScraperResult {
	out := make([]model.ScraperResult, len(in))
	for i, res := range in {
		res.Pages = clonePages(res.Pages)
		res.DiscoveredLinks = slices.Clone(res.DiscoveredLinks)
		res.Errors = slices.Clone(res.Errors)
		res.Validation.Valid = slices.Clone(res.Validation.Valid)
		res.Validation.Invalid = slices.Clone(res.Validation.Invalid)
		out[i] = res
	}
	return out
}

func clonePages(in []model.PageResult) []model.PageResult {
	out := make([]model.PageResult, len(in))
	for i, p := range in {
		p.Links = slices.Clone(p.Links)
		p.Technologies = slices.Clone(p.Technologies)
		p.APIHints = slices.Clone(p.APIHints)
		p.Contact = cloneContact(p.Contact)
		p.Social = slices.Clone(p.Social)
		p.Forms = cloneForms(p.Forms)
		p.Images = slices.Clone(p.Images)
		out[i] = p
	}
	return out
}
