// Package server exposes a running simulation over a JSON debug API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/rerender/internal/config"
	"github.com/me/rerender/internal/journal"
	"github.com/me/rerender/internal/sim"
)

// Backend is the simulation the server inspects and drives. *sim.App
// implements it.
type Backend interface {
	Renderers(ctx context.Context) ([]sim.RendererInfo, error)
	Renderer(ctx context.Context, id string) (sim.RendererInfo, error)
	Bump(ctx context.Context, rendererID string) error
	Apply(ctx context.Context, step sim.Step) error
	HasViews() bool
}

// Server is the rerender debug API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	backend   Backend
	journal   journal.Journal // optional; journal endpoints answer 503 without it
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithJournal enables the /passes and /faults endpoints.
func WithJournal(j journal.Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.Config, backend Backend, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		backend:   backend,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/renderers", func(r chi.Router) {
			r.Get("/", s.handleListRenderers)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRenderer)
				r.Post("/bump", s.handleBumpRenderer)
			})
		})

		r.Post("/steps", s.handleApplyStep)

		r.Get("/passes", s.handleListPasses)
		r.Get("/faults", s.handleListFaults)
	})
}
