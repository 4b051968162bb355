package session

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/dicer/internal/store"
)

// storageConformance exercises the Storage contract.
func storageConformance(t *testing.T, st Storage) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, TokenKey); err != nil || ok {
		t.Fatalf("Get on empty storage = ok %v, err %v", ok, err)
	}
	if err := st.Delete(ctx, TokenKey); err != nil {
		t.Fatalf("Delete of missing key: %v", err)
	}
	if err := st.Set(ctx, TokenKey, "T1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := st.Get(ctx, TokenKey); err != nil || !ok || v != "T1" {
		t.Fatalf("Get = %q, %v, %v; want T1", v, ok, err)
	}
	if err := st.Delete(ctx, TokenKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := st.Get(ctx, TokenKey); ok {
		t.Fatal("entry still present after Delete")
	}
}

func TestMemoryStorage(t *testing.T) {
	storageConformance(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	storageConformance(t, NewFileStorage(path))
}

func TestFileStorage_PermissionsAndCleanup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dicer", "session.json")
	fs := NewFileStorage(path)

	s := newTestStore(fs)
	s.Initialize(ctx)
	if err := s.Login(ctx, "T1", "a@x.com"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat session file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}

	// A second store over the same file sees the session.
	other := newTestStore(NewFileStorage(path))
	other.Initialize(ctx)
	if sess, ok := other.Session(); !ok || sess.Identity.Email != "a@x.com" {
		t.Errorf("rehydrated session = %+v (ok=%v)", sess, ok)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file should be removed after logout, stat err = %v", err)
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	os.WriteFile(path, []byte("{not json"), 0o600)

	s := newTestStore(NewFileStorage(path))
	if err := s.Initialize(context.Background()); err == nil {
		t.Error("expected error for corrupt session file")
	}
	if !s.Loading() {
		t.Errorf("State() = %v, want loading", s.State())
	}
}

func TestSQLStorage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storageConformance(t, NewSQLStorage(st, "sc_a", time.Hour))

	// Scopes do not see each other's sessions.
	ctx := context.Background()
	a := newTestStore(NewSQLStorage(st, "sc_a", time.Hour))
	a.Initialize(ctx)
	a.Login(ctx, "T1", "a@x.com")

	b := newTestStore(NewSQLStorage(st, "sc_b", time.Hour))
	b.Initialize(ctx)
	if b.IsAuthenticated() {
		t.Error("scope sc_b picked up sc_a's session")
	}
}

func TestCookieStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cs := NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false, 3600)

	// Login on the first request.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	s := newTestStore(NewCookieStorage(cs, w, r))
	s.Initialize(ctx)
	if err := s.Login(ctx, "T1", "a@x.com"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}
	last := cookies[len(cookies)-1]
	if last.Name != CookieName || !last.HttpOnly {
		t.Errorf("cookie = %+v, want HttpOnly %s", last, CookieName)
	}

	// A later request carrying the cookie rehydrates the session.
	r2 := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r2.AddCookie(last)
	s2 := newTestStore(NewCookieStorage(cs, httptest.NewRecorder(), r2))
	if err := s2.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	sess, ok := s2.Session()
	if !ok || sess.Token != "T1" || sess.Identity.Email != "a@x.com" {
		t.Errorf("rehydrated session = %+v (ok=%v)", sess, ok)
	}

	// Logout expires the cookie.
	w3 := httptest.NewRecorder()
	r3 := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r3.AddCookie(last)
	s3 := newTestStore(NewCookieStorage(cs, w3, r3))
	s3.Initialize(ctx)
	if err := s3.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	out := w3.Result().Cookies()
	if len(out) == 0 || out[len(out)-1].MaxAge >= 0 {
		t.Errorf("logout cookies = %+v, want an expired cookie", out)
	}
}

func TestCookieStorage_TamperedCookie(t *testing.T) {
	cs := NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false, 3600)
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})

	s := newTestStore(NewCookieStorage(cs, httptest.NewRecorder(), r))
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if s.State() != Unauthenticated {
		t.Errorf("State() = %v, want unauthenticated for forged cookie", s.State())
	}
}
