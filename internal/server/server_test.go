package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/dicer/internal/config"
	"github.com/me/dicer/internal/logging"
	"github.com/me/dicer/internal/session"
	"github.com/me/dicer/internal/store"
)

func testConfig(backendURL string) config.ConsoleConfig {
	cfg := config.DefaultConsoleConfig()
	cfg.BackendURL = backendURL
	cfg.SessionSecret = strings.Repeat("s", 32)
	return cfg
}

func testServer(t *testing.T, cfg config.ConsoleConfig, opts ...Option) *Server {
	t.Helper()
	srv, err := New(cfg, logging.Discard(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

// healthEnvelope decodes the /healthz envelope.
type healthEnvelope struct {
	Status    string         `json:"status"`
	RequestID string         `json:"request_id"`
	Data      healthResponse `json:"data"`
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := testServer(t, testConfig("http://backend.invalid"))

	w := doGet(t, srv, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var env healthEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if env.Status != "ok" || env.RequestID == "" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Data.Status != "healthy" || env.Data.GoVersion == "" || env.Data.SessionBackend != "cookie" {
		t.Errorf("health = %+v", env.Data)
	}
	if env.Data.Interceptors != 1 {
		t.Errorf("interceptors = %d, want exactly 1", env.Data.Interceptors)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestHealth_SQLiteStore(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testConfig("http://backend.invalid")
	cfg.SessionBackend = config.SessionBackendSQLite
	srv := testServer(t, cfg, WithStore(st))

	var env healthEnvelope
	json.Unmarshal(doGet(t, srv, "/healthz").Body.Bytes(), &env)
	if env.Data.Store != "ok" {
		t.Errorf("store = %q, want ok", env.Data.Store)
	}

	st.Close()
	w := doGet(t, srv, "/healthz")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("closed store: status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, testConfig("http://backend.invalid"))
	doGet(t, srv, "/login")

	w := doGet(t, srv, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "dicer_http_request_duration_seconds") {
		t.Error("console request metrics missing")
	}
}

func TestCloseDeregistersInterceptor(t *testing.T) {
	cfg := testConfig("http://backend.invalid")
	srv, err := New(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if srv.client.Interceptors() != 1 {
		t.Fatalf("interceptors = %d, want 1", srv.client.Interceptors())
	}
	srv.Close()
	srv.Close()
	if srv.client.Interceptors() != 0 {
		t.Errorf("interceptors after Close = %d, want 0", srv.client.Interceptors())
	}
}

func TestNew_BadSessionBackend(t *testing.T) {
	cfg := testConfig("http://backend.invalid")
	cfg.SessionBackend = config.SessionBackendSQLite
	if _, err := New(cfg, logging.Discard()); err == nil {
		t.Error("sqlite backend without a store should fail")
	}

	cfg.SessionBackend = "redis"
	if _, err := New(cfg, logging.Discard()); err == nil {
		t.Error("unknown backend should fail")
	}
}

// TestForcedLogoutSQLite runs the 401 path against server-side sessions:
// the scope's rows are gone after the redirect.
func TestForcedLogoutSQLite(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Token expired"}`))
	}))
	defer backend.Close()

	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	const scope = "0b5c7f0e-2f7e-4d43-9d5a-6f2b8f9e1a11"
	ctx := context.Background()
	seed := session.NewStore(session.NewSQLStorage(st, scope, time.Hour), session.WithLogger(logging.Discard()))
	seed.Initialize(ctx)
	if err := seed.Login(ctx, "T1", "a@x.com"); err != nil {
		t.Fatalf("seed login: %v", err)
	}

	cfg := testConfig(backend.URL)
	cfg.SessionBackend = config.SessionBackendSQLite
	srv := testServer(t, cfg, WithStore(st))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "console_sid", Value: scope})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther || !strings.HasPrefix(w.Header().Get("Location"), "/login") {
		t.Fatalf("got %d Location=%q, want redirect to /login", w.Code, w.Header().Get("Location"))
	}
	if _, ok, _ := st.GetValue(ctx, scope, session.TokenKey); ok {
		t.Error("token row survived forced logout")
	}
}
