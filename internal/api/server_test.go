package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/metrics"
	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/store"
)

const acmeHome = `<html><head>
<title>Acme Corp</title>
<meta name="description" content="Acme builds anvils and rockets.">
</head><body>
<p>We build great products for teams that ship software every single day.</p>
<a href="/about">About</a>
<a href="/contact">Contact</a>
</body></html>`

type fixture struct {
	srv       *httptest.Server
	store     store.Store
	transport *httpmock.MockTransport
	manager   *lifecycle.Manager
	deps      Deps
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	transport := httpmock.NewMockTransport()
	resp := httpmock.NewStringResponse(200, acmeHome)
	resp.Header.Set("Content-Type", "text/html")
	transport.RegisterResponder("GET", "https://acme.test/", httpmock.ResponderFromResponse(resp))

	pipeline, err := extract.NewPipeline(0)
	require.NoError(t, err)
	cfg := collector.DefaultHTTPConfig()
	cfg.RatePerHost = 0
	cfg.MaxAttempts = 1
	httpC, err := collector.NewHTTPCollector(collector.Info{ID: "http", Name: "HTTP"}, cfg, pipeline,
		collector.WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)

	m := metrics.New()
	manager := lifecycle.NewManager(lifecycle.DefaultConfig(), lifecycle.WithMetrics(m))
	t.Cleanup(func() { _ = manager.CleanupAll(context.Background()) })

	deps := Deps{
		Manager:       manager,
		Collectors:    []collector.Collector{httpC},
		Metrics:       m,
		Execute:       collector.DefaultExecuteOptions(),
		MaxURLsPerRun: 5,
	}
	if withStore {
		st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		require.NoError(t, st.Migrate(context.Background()))
		t.Cleanup(func() { st.Close() }) //nolint:errcheck
		deps.Store = st
	}

	s, err := NewServer(deps)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: deps.Store, transport: transport, manager: manager, deps: deps}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (f *fixture) create(t *testing.T, domain string) sessionResponse {
	t.Helper()
	code, body := f.do(t, http.MethodPost, "/sessions", createSessionRequest{Domain: domain})
	require.Equal(t, http.StatusCreated, code, string(body))
	var out sessionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestNewServer_RequiresManager(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	code, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)

	var h healthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "ok", h.Status)
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t, false)
	out := f.create(t, "https://www.Acme.test/")
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "acme.test", out.Domain)
	assert.Equal(t, model.SessionActive, out.Status)
	assert.Equal(t, []string{"http"}, out.Collectors)

	code, _ := f.do(t, http.MethodPost, "/sessions", createSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, code)

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/sessions", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunAndInspect(t *testing.T) {
	f := newFixture(t, true)
	sess := f.create(t, "acme.test")
	base := "/sessions/" + sess.ID

	code, body := f.do(t, http.MethodPost, base+"/runs", runRequest{CollectorID: "http"})
	require.Equal(t, http.StatusOK, code, string(body))
	var res model.ScraperResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	assert.Equal(t, "http", res.CollectorID)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "Acme Corp", res.Pages[0].Title)

	code, body = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Contains(t, snap.Pages, "https://acme.test/")
	assert.Equal(t, []string{"http"}, snap.Pages["https://acme.test/"].ScrapedBy)

	code, body = f.do(t, http.MethodGet, base+"/links?type=internal", nil)
	require.Equal(t, http.StatusOK, code)
	var links []model.DiscoveredLink
	require.NoError(t, json.Unmarshal(body, &links))
	require.Len(t, links, 2)
	assert.Equal(t, model.PriorityHigh, links[0].Priority)

	code, body = f.do(t, http.MethodGet, base+"/suggestions", nil)
	require.Equal(t, http.StatusOK, code)
	var sugs []model.Suggestion
	require.NoError(t, json.Unmarshal(body, &sugs))
	require.NotEmpty(t, sugs)
	assert.Equal(t, model.ActionExploreLinks, sugs[0].Action)
	assert.Equal(t, model.ActionComplete, sugs[len(sugs)-1].Action)

	stored, err := f.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, stored.History, 1)
}

func TestRunErrors(t *testing.T) {
	f := newFixture(t, false)
	sess := f.create(t, "acme.test")
	base := "/sessions/" + sess.ID

	tests := []struct {
		name string
		req  runRequest
		want int
	}{
		{"missing collector id", runRequest{}, http.StatusBadRequest},
		{"unknown collector", runRequest{CollectorID: "nope"}, http.StatusNotFound},
		{"invalid urls", runRequest{CollectorID: "http", URLs: []string{"ftp://acme.test/"}}, http.StatusBadRequest},
		{"too many urls", runRequest{CollectorID: "http", URLs: make([]string, 6)}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := f.do(t, http.MethodPost, base+"/runs", tt.req)
			assert.Equal(t, tt.want, code, string(body))
		})
	}

	code, _ := f.do(t, http.MethodPost, "/sessions/missing/runs", runRequest{CollectorID: "http"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCompleteSession(t *testing.T) {
	f := newFixture(t, false)
	sess := f.create(t, "acme.test")
	base := "/sessions/" + sess.ID

	code, body := f.do(t, http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, code)
	var out sessionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, model.SessionCompleted, out.Status)

	code, _ = f.do(t, http.MethodPost, base+"/runs", runRequest{CollectorID: "http"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestListSessions_InMemory(t *testing.T) {
	f := newFixture(t, false)
	f.create(t, "acme.test")
	time.Sleep(2 * time.Millisecond)
	f.create(t, "other.test")

	code, body := f.do(t, http.MethodGet, "/sessions?domain=other.test", nil)
	require.Equal(t, http.StatusOK, code)
	var list []store.SessionSummary
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "other.test", list[0].Domain)

	code, body = f.do(t, http.MethodGet, "/sessions?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)
}

func TestListSessions_Store(t *testing.T) {
	f := newFixture(t, true)
	f.create(t, "acme.test")

	code, body := f.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, code)
	var list []store.SessionSummary
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "acme.test", list[0].Domain)
}

func TestSessionRestoredFromStore(t *testing.T) {
	f := newFixture(t, true)
	sess := f.create(t, "acme.test")
	code, _ := f.do(t, http.MethodPost, "/sessions/"+sess.ID+"/runs", runRequest{CollectorID: "http"})
	require.Equal(t, http.StatusOK, code)

	// A second server over the same store has no live sessions.
	fresh, err := NewServer(f.deps)
	require.NoError(t, err)
	srv := httptest.NewServer(fresh.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/sessions/" + sess.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap model.SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Len(t, snap.History, 1)
	assert.Equal(t, []string{"http"}, snap.Collectors)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t, true)
	sess := f.create(t, "acme.test")

	code, _ := f.do(t, http.MethodDelete, "/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = f.do(t, http.MethodGet, "/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.do(t, http.MethodDelete, "/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	sess := f.create(t, "acme.test")
	code, _ := f.do(t, http.MethodPost, "/sessions/"+sess.ID+"/runs", runRequest{CollectorID: "http"})
	require.Equal(t, http.StatusOK, code)

	code, body := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "domain_intel_session_runs_total")
	assert.Contains(t, string(body), "domain_intel_collector_instances")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, false)
	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
