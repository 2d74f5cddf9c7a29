package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/merge"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API server for docstruct.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	stats        *merge.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil when
// no merge provider is configured.
func NewServer(orch *pipeline.Orchestrator, stats *merge.Stats, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		orchestrator: orch,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(Metrics)

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)
		r.Get("/api/jobs", s.handleListJobs)
		r.Get("/api/jobs/{jobID}", s.handleGetJob)
		r.Get("/api/jobs/{jobID}/result", s.handleJobResult)
		r.Delete("/api/jobs/{jobID}", s.handleDeleteJob)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
