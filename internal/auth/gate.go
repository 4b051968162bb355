// Package auth implements the console's access control: the session gate
// in front of every page, the interceptor that turns a backend 401 into a
// forced logout, and the login flow.
package auth

import (
	"log/slog"
	"net/http"

	"github.com/me/dicer/internal/metrics"
	"github.com/me/dicer/internal/session"
)

// StoreFactory builds the session store for the browser behind r. It may
// set cookies on w (scope id, session cookie).
type StoreFactory interface {
	NewStore(w http.ResponseWriter, r *http.Request) *session.Store
}

// StoreFactoryFunc adapts a function to StoreFactory.
type StoreFactoryFunc func(w http.ResponseWriter, r *http.Request) *session.Store

func (f StoreFactoryFunc) NewStore(w http.ResponseWriter, r *http.Request) *session.Store {
	return f(w, r)
}

// Gate decides per request whether to render, redirect or wait.
type Gate struct {
	factory StoreFactory
	loading http.Handler
	logger  *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLoadingHandler replaces the page shown while the session is loading.
func WithLoadingHandler(h http.Handler) GateOption {
	return func(g *Gate) { g.loading = h }
}

// NewGate creates a gate that builds stores with factory.
func NewGate(factory StoreFactory, logger *slog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		factory: factory,
		loading: http.HandlerFunc(loadingPage),
		logger:  logger.With("component", "gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Session builds and initializes the request's store and places it in the
// context together with a redirect recorder. A store already in the
// context is reused.
func (g *Gate) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session.FromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		store := g.factory.NewStore(w, r)
		if err := store.Initialize(r.Context()); err != nil {
			g.logger.Warn("session initialize failed", "scope", store.Scope(), "error", err)
		}
		unsubscribe := store.Subscribe(func(c session.Change) {
			metrics.SessionTransitions.WithLabelValues(c.To.String()).Inc()
		})
		defer unsubscribe()

		ctx := session.WithStore(WithNavigation(r.Context()), store)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Protected renders next only for an authenticated session. Without one it
// redirects to the login view; while loading it shows the loading page.
func (g *Gate) Protected(next http.Handler) http.Handler {
	return g.Session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := session.FromContext(r.Context())
		switch store.State() {
		case session.Loading:
			g.loading.ServeHTTP(w, r)
		case session.Unauthenticated:
			Redirect(w, r, LoginPath)
		default:
			next.ServeHTTP(w, r)
		}
	}))
}

// Public guards the login view: an authenticated session is sent to the
// dashboard instead.
func (g *Gate) Public(next http.Handler) http.Handler {
	return g.Session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := session.FromContext(r.Context())
		switch store.State() {
		case session.Loading:
			g.loading.ServeHTTP(w, r)
		case session.Authenticated:
			Redirect(w, r, DashboardPath)
		default:
			next.ServeHTTP(w, r)
		}
	}))
}

const loadingHTML = `<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta http-equiv="refresh" content="1">
<title>Loading - DICER</title></head>
<body style="font-family:sans-serif;display:flex;align-items:center;justify-content:center;height:100vh;margin:0">
<p>Loading&hellip;</p></body></html>`

// loadingPage is the neutral placeholder shown until the session can be
// read. It refreshes itself.
func loadingPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(loadingHTML))
}
