// Package api exposes sessions over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/metrics"
	"github.com/sells-group/domain-intel/internal/store"
)

// Deps are the collaborators a Server needs. Store and Metrics are optional.
type Deps struct {
	Manager    *lifecycle.Manager
	Collectors []collector.Collector
	Store      store.Store
	Metrics    *metrics.Metrics

	// Execute is applied to every run unless the request overrides it.
	Execute        collector.ExecuteOptions
	MaxURLsPerRun  int
	AllowedOrigins []string
	MetricsPath    string
}

// Server routes API requests to in-memory sessions, loading stored
// sessions on demand.
type Server struct {
	deps     Deps
	sessions *registry
	log      *zap.Logger
	started  time.Time
}

// NewServer validates deps and builds a Server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Manager == nil {
		return nil, eris.New("api: lifecycle manager is required")
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}
	log := zap.L().With(zap.String("component", "api"))
	return &Server{
		deps:     deps,
		sessions: newRegistry(deps, log),
		log:      log,
		started:  time.Now(),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	if s.deps.Metrics != nil {
		r.Handle(s.deps.MetricsPath, promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/runs", s.runCollector)
			r.Get("/suggestions", s.suggestions)
			r.Get("/links", s.links)
			r.Post("/complete", s.completeSession)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
