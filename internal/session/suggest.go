package session

import (
	"fmt"
	"sort"

	"github.com/sells-group/domain-intel/internal/model"
)

const (
	// lowQualityThreshold marks pages worth re-extracting.
	lowQualityThreshold = 40
	maxLinkTargets      = 10
)

// Suggestions returns rule-based next steps. The output is a pure function
// of session state: sorted by confidence with exactly one trailing complete.
func (s *Session) Suggestions() []model.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Suggestion
	out = append(out, s.collectorSuggestions()...)

	links := s.undiscovered()
	var internal []string
	for _, l := range links {
		if l.Type == model.LinkInternal {
			internal = append(internal, l.URL)
		}
	}
	if len(internal) > 0 {
		targets := internal
		if len(targets) > maxLinkTargets {
			targets = targets[:maxLinkTargets]
		}
		out = append(out, model.Suggestion{
			Action:     model.ActionExploreLinks,
			Reason:     fmt.Sprintf("%d internal links have not been collected", len(internal)),
			Confidence: model.ConfidenceFact,
			TargetURLs: append([]string(nil), targets...),
		})
	}

	var weak []string
	hasContact := false
	for _, key := range s.order {
		rec := s.pages[key]
		if rec.QualityScore < lowQualityThreshold {
			weak = append(weak, rec.URL)
		}
		if !rec.Contact.IsEmpty() {
			hasContact = true
		}
	}
	if len(weak) > 0 {
		out = append(out, model.Suggestion{
			Action:     model.ActionExtractData,
			Reason:     fmt.Sprintf("%d pages scored below %d quality", len(weak), lowQualityThreshold),
			Confidence: model.ConfidenceHeuristic,
			TargetURLs: weak,
		})
	}
	if !hasContact {
		var contactLinks []string
		for _, l := range links {
			if l.Priority == model.PriorityHigh && isContactLink(l) {
				contactLinks = append(contactLinks, l.URL)
			}
		}
		if len(contactLinks) > 0 {
			out = append(out, model.Suggestion{
				Action:     model.ActionExtractData,
				Reason:     "no contact information yet but contact pages are known",
				Confidence: model.ConfidenceFact,
				TargetURLs: contactLinks,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})

	done := model.Suggestion{
		Action:     model.ActionComplete,
		Reason:     "collected data covers every known lead",
		Confidence: model.ConfidenceFact,
	}
	if len(out) > 0 {
		done.Reason = "session can be completed once the suggestions above are handled"
		done.Confidence = model.ConfidenceHeuristic
	}
	return append(out, done)
}

// collectorSuggestions proposes each registered collector that has never
// run successfully. Callers hold s.mu.
func (s *Session) collectorSuggestions() []model.Suggestion {
	used := make(map[string]bool)
	for _, res := range s.history {
		if res.Success {
			used[res.CollectorID] = true
		}
	}

	candidates := append([]string(nil), s.order...)
	if len(candidates) == 0 {
		candidates = []string{"https://" + s.domain + "/"}
	}

	var out []model.Suggestion
	for _, r := range s.collectors {
		info := r.c.Info()
		if used[info.ID] {
			continue
		}
		var targets []string
		for _, u := range candidates {
			if r.c.CanHandle(u) {
				targets = append(targets, u)
			}
		}
		if len(targets) == 0 {
			continue
		}
		out = append(out, model.Suggestion{
			Action:      model.ActionUseCollector,
			Reason:      fmt.Sprintf("%s (%s) has not been run on this domain", info.Name, info.Strategy),
			Confidence:  model.ConfidenceHeuristic,
			CollectorID: info.ID,
			TargetURLs:  targets,
		})
	}
	return out
}
