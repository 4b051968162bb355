package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/me/dicer/internal/apiclient"
	"github.com/me/dicer/internal/logging"
	"github.com/me/dicer/internal/session"
)

func backend(t *testing.T, h http.HandlerFunc) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL+"/api", 5*time.Second, logging.Discard())
}

func loggedIn(t *testing.T) (*session.Store, *session.MemoryStorage) {
	t.Helper()
	st := session.NewMemoryStorage()
	s := session.NewStore(st, session.WithScope("sc_1"), session.WithLogger(logging.Discard()))
	s.Initialize(context.Background())
	if err := s.Login(context.Background(), "T1", "a@x.com"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return s, st
}

// recordingNavigator checks that logout finished before navigation.
type recordingNavigator struct {
	store       *session.Store
	target      string
	authWhenNav bool
}

func (n *recordingNavigator) Navigate(_ context.Context, target string) {
	n.target = target
	n.authWhenNav = n.store.IsAuthenticated()
}

func TestUnauthorized_ForcesLogout(t *testing.T) {
	client := backend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Token expired"})
	})
	store, st := loggedIn(t)
	nav := &recordingNavigator{store: store}
	remove := NewUnauthorizedInterceptor(nav, logging.Discard()).Register(client)
	defer remove()

	ctx := session.WithStore(context.Background(), store)
	_, err := client.ListUsers(ctx)
	if !errors.Is(err, apiclient.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if store.IsAuthenticated() || store.Token() != "" {
		t.Error("session not cleared")
	}
	if st.Len() != 0 {
		t.Errorf("storage holds %d entries after forced logout", st.Len())
	}
	if nav.target != LoginPath {
		t.Errorf("navigated to %q, want %q", nav.target, LoginPath)
	}
	if nav.authWhenNav {
		t.Error("navigation happened before logout completed")
	}
}

func TestUnauthorized_PassesOtherResponses(t *testing.T) {
	var status atomic.Int32
	client := backend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		w.Write([]byte(`{"users":[]}`))
	})
	store, _ := loggedIn(t)
	nav := &recordingNavigator{store: store}
	defer NewUnauthorizedInterceptor(nav, logging.Discard()).Register(client)()

	ctx := session.WithStore(context.Background(), store)
	for _, code := range []int{http.StatusInternalServerError, http.StatusForbidden, http.StatusOK} {
		status.Store(int32(code))
		_, err := client.ListUsers(ctx)
		if errors.Is(err, apiclient.ErrSessionExpired) {
			t.Errorf("status %d treated as expired session", code)
		}
	}
	if !store.IsAuthenticated() || nav.target != "" {
		t.Error("non-401 responses must not touch the session")
	}
}

func TestUnauthorized_IgnoresLoginRejection(t *testing.T) {
	client := backend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid credentials"}`))
	})
	nav := &recordingNavigator{store: session.NewStore(session.NewMemoryStorage())}
	defer NewUnauthorizedInterceptor(nav, logging.Discard()).Register(client)()

	_, err := client.Login(context.Background(), apiclient.Credentials{Email: "a@x.com", Password: "bad"})
	if errors.Is(err, apiclient.ErrSessionExpired) || nav.target != "" {
		t.Errorf("credential rejection handled as expired session: %v", err)
	}
}

func TestUnauthorized_RemoveStopsInterception(t *testing.T) {
	client := backend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	store, _ := loggedIn(t)
	remove := NewUnauthorizedInterceptor(&recordingNavigator{store: store}, logging.Discard()).Register(client)
	remove()
	remove()

	_, err := client.ListUsers(session.WithStore(context.Background(), store))
	if apiclient.StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("err = %v, want plain 401 APIError", err)
	}
	if !store.IsAuthenticated() {
		t.Error("removed interceptor still logged out")
	}
}

func TestWebNavigator(t *testing.T) {
	ctx := WithNavigation(context.Background())
	if _, ok := ForcedRedirect(ctx); ok {
		t.Fatal("fresh context reports a redirect")
	}
	WebNavigator{}.Navigate(ctx, LoginPath)
	WebNavigator{}.Navigate(ctx, "/elsewhere")
	if target, ok := ForcedRedirect(ctx); !ok || target != LoginPath {
		t.Errorf("ForcedRedirect = %q, %v; want first target %q", target, ok, LoginPath)
	}

	// Without a recorder Navigate is a no-op.
	WebNavigator{}.Navigate(context.Background(), LoginPath)
}

func TestCLINavigator(t *testing.T) {
	var buf bytes.Buffer
	CLINavigator{Out: &buf}.Navigate(context.Background(), LoginPath)
	if !strings.Contains(buf.String(), "dicer login") {
		t.Errorf("output = %q", buf.String())
	}
}
