package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/session"
	"github.com/sells-group/domain-intel/internal/store"
)

type createSessionRequest struct {
	Domain               string   `json:"domain"`
	PreviouslyDiscovered []string `json:"previously_discovered,omitempty"`
}

type sessionResponse struct {
	ID         string              `json:"id"`
	Domain     string              `json:"domain"`
	Status     model.SessionStatus `json:"status"`
	Collectors []string            `json:"collectors"`
	Stats      model.SessionStats  `json:"stats"`
}

type runRequest struct {
	CollectorID string           `json:"collector_id"`
	URLs        []string         `json:"urls"`
	Extract     *extract.Options `json:"extract,omitempty"`
	TimeoutMS   int64            `json:"timeout_ms,omitempty"`
}

type healthResponse struct {
	Status     string                   `json:"status"`
	Uptime     string                   `json:"uptime"`
	Collectors []lifecycle.InstanceInfo `json:"collectors"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Collectors: s.deps.Manager.Instances(),
	})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	sess, err := s.sessions.create(r.Context(), req.Domain, req.PreviouslyDiscovered)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("session created", zap.String("session", sess.ID()), zap.String("domain", sess.Domain()))
	writeJSON(w, http.StatusCreated, describe(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SessionFilter{
		Domain: q.Get("domain"),
		Status: model.SessionStatus(q.Get("status")),
		Limit:  atoi(q.Get("limit")),
		Offset: atoi(q.Get("offset")),
	}

	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, filterLive(s.sessions.snapshots(), filter))
		return
	}
	list, err := s.deps.Store.ListSessions(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	if list == nil {
		list = []store.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Export())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runCollector(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CollectorID == "" {
		writeError(w, http.StatusBadRequest, "collector_id is required")
		return
	}
	urls := req.URLs
	if len(urls) == 0 {
		urls = []string{"https://" + sess.Domain() + "/"}
	}
	if limit := s.deps.MaxURLsPerRun; limit > 0 && len(urls) > limit {
		writeError(w, http.StatusBadRequest, "too many urls: limit is "+strconv.Itoa(limit))
		return
	}

	opts := s.deps.Execute
	if req.Extract != nil {
		opts.Extract = *req.Extract
	}
	if req.TimeoutMS > 0 {
		opts.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	res, err := sess.Run(r.Context(), req.CollectorID, urls, opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	_ = s.sessions.save(r.Context(), sess)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) suggestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Suggestions())
}

func (s *Server) links(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	links := sess.UndiscoveredLinks()
	if t := r.URL.Query().Get("type"); t != "" {
		filtered := links[:0]
		for _, l := range links {
			if string(l.Type) == t {
				filtered = append(filtered, l)
			}
		}
		links = filtered
	}
	if links == nil {
		links = []model.DiscoveredLink{}
	}
	writeJSON(w, http.StatusOK, links)
}

func (s *Server) completeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Complete(); err != nil {
		s.fail(w, err)
		return
	}
	_ = s.sessions.save(r.Context(), sess)
	writeJSON(w, http.StatusOK, describe(sess))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	return sess, true
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errSessionNotFound), errors.Is(err, session.ErrUnknownCollector),
		errors.Is(err, lifecycle.ErrNotRegistered):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrSessionCompleted), errors.Is(err, session.ErrRunInProgress),
		errors.Is(err, collector.ErrAlreadyBusy):
		status = http.StatusConflict
	case errors.Is(err, collector.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, collector.ErrCollection), errors.Is(err, collector.ErrNotInitialized):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func describe(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:         sess.ID(),
		Domain:     sess.Domain(),
		Status:     sess.Status(),
		Collectors: sess.Collectors(),
		Stats:      sess.Stats(),
	}
}

func filterLive(list []store.SessionSummary, f store.SessionFilter) []store.SessionSummary {
	out := []store.SessionSummary{}
	for _, sum := range list {
		if f.Domain != "" && sum.Domain != f.Domain {
			continue
		}
		if f.Status != "" && sum.Status != f.Status {
			continue
		}
		out = append(out, sum)
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []store.SessionSummary{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
