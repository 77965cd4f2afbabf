package session

import "slices"

// recomputeStats rebuilds the derived stats from history and pages.
// FailedRuns is kept since aborted runs leave no history. Callers hold s.mu.
func (s *Session) recomputeStats() {
	failed := s.stats.FailedRuns
	st := s.stats
	st.TotalRuns = len(s.history)
	st.SuccessfulRuns = 0
	st.PagesAttempted = 0
	st.TotalBytes = 0
	st.TotalDataPoints = 0
	st.CollectorsUsed = nil

	links := make(map[string]bool)
	for _, res := range s.history {
		st.PagesAttempted += res.Stats.Attempted
		st.TotalBytes += res.Stats.TotalBytes
		st.TotalDataPoints += res.Stats.DataPoints
		if res.Success {
			st.SuccessfulRuns++
			if !slices.Contains(st.CollectorsUsed, res.CollectorID) {
				st.CollectorsUsed = append(st.CollectorsUsed, res.CollectorID)
			}
		}
		if res.CompletedAt.After(st.LastRunAt) {
			st.LastRunAt = res.CompletedAt
		}
		for _, l := range res.DiscoveredLinks {
			if k := urlKey(l); k != "" {
				links[k] = true
			}
		}
	}

	st.TotalPages = len(s.pages)
	var quality, completeness int
	for _, rec := range s.pages {
		quality += rec.QualityScore
		completeness += rec.CompletenessScore
		for _, l := range rec.Links {
			if k := urlKey(l); k != "" {
				links[k] = true
			}
		}
	}
	st.UniqueLinks = len(links)
	if n := len(s.pages); n > 0 {
		st.AverageQuality = float64(quality) / float64(n)
		st.AverageCompleteness = float64(completeness) / float64(n)
	} else {
		st.AverageQuality = 0
		st.AverageCompleteness = 0
	}
	st.FailedRuns = failed
	s.stats = st
}
