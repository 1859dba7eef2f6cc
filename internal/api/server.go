// Package api provides the ops HTTP surface of the generation engine.
// It creates a chi router that exposes plan generation, pass preview and
// pass history endpoints behind a static bearer token, and enforces
// cross-cutting concerns (panic recovery, request correlation, logging)
// before requests reach the handlers.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"crewplan/internal/config"
	"crewplan/internal/types"
)

// PlanRunner triggers generation passes. Implemented by
// scheduler.Service.
type PlanRunner interface {
	// RunPlan executes one committing pass for the plan at the given
	// reference time.
	RunPlan(ctx context.Context, planID string, now time.Time) (*types.CommitSummary, error)

	// Preview computes a pass without committing anything.
	Preview(ctx context.Context, planID string, now time.Time) (*types.GenerationResult, error)
}

// PassLister reads pass history. Implemented by db.PassHistoryRepository.
type PassLister interface {
	ListPasses(ctx context.Context, planID string, limit int) ([]types.PassRecord, error)
}

// HealthProbe is a subsystem check exposed through GET /health.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// Server holds the API dependencies and the router. Dependencies are
// injected so tests can substitute fakes.
type Server struct {
	Config *config.Config
	Logger *slog.Logger
	Plans  PlanRunner
	Passes PassLister
	Probes []HealthProbe

	router *chi.Mux
}

// NewServer validates the required dependencies and prepares the router.
// Routes are mounted separately so tests can customize registration.
func NewServer(cfg *config.Config, plans PlanRunner, passes PassLister, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if plans == nil {
		return nil, fmt.Errorf("plan runner must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		Plans:  plans,
		Passes: passes,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in
// tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountRoutes registers the global middleware chain and all endpoints.
// Middleware order matters: Recoverer is outermost so every panic is
// caught, and auth runs after logging so rejected requests still appear
// in the logs.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.HandleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		r.Route("/plans/{planID}", func(r chi.Router) {
			r.Post("/generate", s.HandleGenerate)
			r.Get("/preview", s.HandlePreview)
			r.Get("/passes", s.HandleListPasses)
		})
	})
}
