// Package server assembles the DICER web console: router, middleware,
// health and metrics endpoints, and the console pages.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/dicer/internal/apiclient"
	"github.com/me/dicer/internal/auth"
	"github.com/me/dicer/internal/config"
	"github.com/me/dicer/internal/metrics"
	"github.com/me/dicer/internal/store"
	"github.com/me/dicer/internal/ui"
)

// Version is reported by /healthz.
const Version = "0.1.0"

// Server is the DICER console HTTP server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ConsoleConfig
	startTime time.Time
	client    *apiclient.Client
	flow      *auth.Flow
	store     store.Store // optional; server-side session rows (sqlite backend)
	ui        *ui.UI

	closeOnce         sync.Once
	removeInterceptor func()
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore sets the database used by the sqlite session backend.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithAPIClient replaces the backend client built from the config.
func WithAPIClient(c *apiclient.Client) Option {
	return func(s *Server) {
		s.client = c
	}
}

// New creates a Server with all routes registered. The unauthorized
// interceptor is installed on the backend client here and removed by
// Close.
func New(cfg config.ConsoleConfig, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = apiclient.New(cfg.APIBase(), cfg.RequestTimeout, logger)
	}

	factory, err := ui.NewStoreFactory(cfg, s.store, logger)
	if err != nil {
		return nil, fmt.Errorf("session backend: %w", err)
	}

	s.removeInterceptor = auth.NewUnauthorizedInterceptor(auth.WebNavigator{}, logger).Register(s.client)

	s.flow = auth.NewFlow(s.client, cfg.StatusURL, cfg.StatusTimeout, logger)
	s.ui = ui.New(s.client, auth.NewGate(factory, logger), s.flow, logger, ui.Config{
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		LoginBurst:         cfg.LoginBurst,
	})

	s.routes()
	return s, nil
}

// StartSessionCleanup removes expired server-side sessions in the
// background until ctx is done. It does nothing without a store.
func (s *Server) StartSessionCleanup(ctx context.Context, interval time.Duration) {
	if s.store == nil {
		return
	}
	go ui.CleanupExpiredSessions(ctx, s.store, interval, s.logger)
}

// Close deregisters the unauthorized interceptor. It is safe to call more
// than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.removeInterceptor()
	})
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

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// Operational endpoints (no session)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	// Console pages
	s.ui.RegisterRoutes(r)
}
