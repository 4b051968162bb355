package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/me/dicer/internal/apiclient"
	"github.com/me/dicer/internal/session"
)

// testBackend is a scripted DICER API.
type testBackend struct {
	url         string
	loginCalls  atomic.Int32
	statusCalls atomic.Int32
	status      string
	expired     atomic.Bool
}

func startTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		b.statusCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"status": b.status})
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.loginCalls.Add(1)
		var creds apiclient.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Email != "a@x.com" || creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "T1", "email": "a@x.com"})
	})

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if b.expired.Load() || r.Header.Get("Authorization") != "Bearer T1" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token"})
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("GET /api/users/count", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"count": 1234})
	}))
	mux.HandleFunc("GET /api/users", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"users": []map[string]any{
			{"user_id": "u1", "name": "Ann", "phone": "555-1", "status": "Active", "device_ids": []string{"d1"}},
			{"user_id": "u2", "name": "Bob", "phone": "555-2", "status": "Inactive"},
		}})
	}))
	mux.HandleFunc("POST /api/users/signup", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]string{"user_id": "u3", "password": "K3Y9"}})
	}))
	mux.HandleFunc("DELETE /api/users/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
	}))
	mux.HandleFunc("PATCH /api/users/{id}/status", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}))
	mux.HandleFunc("GET /api/devices", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"devices": []map[string]any{
			{"device_id": "dev-42", "user_name": "Ann", "last_login_at": time.Now().Add(-3 * time.Hour).Format(time.RFC3339)},
		}}})
	}))
	mux.HandleFunc("GET /api/ble-usage", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ble_list": []map[string]any{{"ble_id": "ble-7", "user_name": "Bob"}}})
	}))
	mux.HandleFunc("GET /api/login-history", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"history": []map[string]any{
			{"user_name": "Ann", "device_id": "dev-42", "success": true, "logged_in_at": "2024-05-01T10:00:00"},
			{"user_name": "Bob", "device_id": "dev-9", "success": false, "logged_in_at": "2024-05-01T11:00:00"},
		}}})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	b.url = srv.URL
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type cliEnv struct {
	backend  *testBackend
	credPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("DICER_STATUS_URL", "")
	return &cliEnv{
		backend:  startTestBackend(t),
		credPath: filepath.Join(t.TempDir(), "session.json"),
	}
}

// run executes the CLI with stdin and returns stdout and stderr.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()

	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--server", e.backend.url, "--credentials", e.credPath}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// seedSession writes a persisted session as a previous login would.
func (e *cliEnv) seedSession(t *testing.T) {
	t.Helper()
	fs := session.NewFileStorage(e.credPath)
	ctx := context.Background()
	if err := fs.Set(ctx, session.TokenKey, "T1"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Set(ctx, session.EmailKey, "a@x.com"); err != nil {
		t.Fatal(err)
	}
}

func (e *cliEnv) sessionExists() bool {
	_, err := os.Stat(e.credPath)
	return err == nil
}

func TestLoginWhoamiLogout(t *testing.T) {
	e := newCLIEnv(t)

	out, _, err := e.run(t, "secret\n", "login", "--email", "a@x.com", "--password-stdin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Signed in as a@x.com") {
		t.Errorf("login output = %q", out)
	}

	values, err := os.ReadFile(e.credPath)
	if err != nil {
		t.Fatalf("read session file: %v", err)
	}
	if !strings.Contains(string(values), `"dicer_token": "T1"`) && !strings.Contains(string(values), `"dicer_token":"T1"`) {
		t.Errorf("session file = %s, want dicer_token T1", values)
	}

	out, _, err = e.run(t, "", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "a@x.com") {
		t.Errorf("whoami output = %q", out)
	}

	out, _, err = e.run(t, "", "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "Logged out a@x.com") {
		t.Errorf("logout output = %q", out)
	}
	if e.sessionExists() {
		t.Error("session file should be removed after logout")
	}

	out, _, err = e.run(t, "", "logout")
	if err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if !strings.Contains(out, "Not logged in.") {
		t.Errorf("second logout output = %q", out)
	}
}

func TestLogin_EmptyPasswordSkipsBackend(t *testing.T) {
	e := newCLIEnv(t)

	_, _, err := e.run(t, "", "login", "--email", "a@x.com", "--password-stdin")
	if err == nil || err.Error() != "Please fill in all fields" {
		t.Fatalf("err = %v, want validation message", err)
	}
	if n := e.backend.loginCalls.Load(); n != 0 {
		t.Errorf("login calls = %d, want 0", n)
	}
	if e.sessionExists() {
		t.Error("no session should be persisted")
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newCLIEnv(t)

	_, _, err := e.run(t, "wrong\n", "login", "--email", "a@x.com", "--password-stdin")
	if err == nil || !strings.Contains(err.Error(), "Invalid email or password") {
		t.Fatalf("err = %v, want backend detail", err)
	}
	if e.sessionExists() {
		t.Error("no session should be persisted")
	}
}

func TestLogin_ServiceUnavailable(t *testing.T) {
	e := newCLIEnv(t)
	e.backend.status = "INACTIVE"
	t.Setenv("DICER_STATUS_URL", e.backend.url+"/status")

	_, _, err := e.run(t, "secret\n", "login", "--email", "a@x.com", "--password-stdin")
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if n := e.backend.loginCalls.Load(); n != 0 {
		t.Errorf("login calls = %d, want 0", n)
	}
}

func TestStatusCommand(t *testing.T) {
	e := newCLIEnv(t)
	e.backend.status = "inactive"

	out, _, err := e.run(t, "", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Service: available (no status endpoint configured)") {
		t.Errorf("status output = %q", out)
	}
	if !strings.Contains(out, "Session: not logged in") {
		t.Errorf("status output = %q", out)
	}

	t.Setenv("DICER_STATUS_URL", e.backend.url+"/status")
	out, _, err = e.run(t, "", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Service: unavailable") {
		t.Errorf("status output = %q", out)
	}
	if e.backend.statusCalls.Load() != 1 {
		t.Errorf("status calls = %d, want 1", e.backend.statusCalls.Load())
	}
}

func TestUsers_RequireLogin(t *testing.T) {
	e := newCLIEnv(t)

	_, _, err := e.run(t, "", "users", "list")
	if !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("err = %v, want errNotLoggedIn", err)
	}
}

func TestUsersList(t *testing.T) {
	e := newCLIEnv(t)
	e.seedSession(t)

	out, _, err := e.run(t, "", "users", "list")
	if err != nil {
		t.Fatalf("users list: %v", err)
	}
	for _, want := range []string{"u1", "Ann", "d1", "u2", "Bob", "Inactive"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, _, err = e.run(t, "", "users", "list", "--status", "inactive")
	if err != nil {
		t.Fatalf("users list --status: %v", err)
	}
	if strings.Contains(out, "Ann") || !strings.Contains(out, "Bob") {
		t.Errorf("filtered output:\n%s", out)
	}
	if !strings.Contains(out, "(1 of 2 shown)") {
		t.Errorf("filtered output missing summary:\n%s", out)
	}

	_, _, err = e.run(t, "", "users", "list", "--status", "sleeping")
	if err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestUsersCountAndCreate(t *testing.T) {
	e := newCLIEnv(t)
	e.seedSession(t)

	out, _, err := e.run(t, "", "users", "count")
	if err != nil {
		t.Fatalf("users count: %v", err)
	}
	if strings.TrimSpace(out) != "1,234" {
		t.Errorf("count output = %q, want 1,234", out)
	}

	out, _, err = e.run(t, "", "users", "create", "--name", "Cat", "--phone", "555-3")
	if err != nil {
		t.Fatalf("users create: %v", err)
	}
	for _, want := range []string{"User created: u3", "Cat", "555-3", "Password: K3Y9"} {
		if !strings.Contains(out, want) {
			t.Errorf("create output missing %q:\n%s", want, out)
		}
	}

	_, _, err = e.run(t, "", "users", "create", "--name", "Cat")
	if err == nil || err.Error() != "Please fill in all fields (missing: phone)" {
		t.Errorf("err = %v, want missing phone", err)
	}
}

func TestUsersDeleteAndStatus(t *testing.T) {
	e := newCLIEnv(t)
	e.seedSession(t)

	out, _, err := e.run(t, "", "users", "delete", "u2")
	if err != nil {
		t.Fatalf("users delete: %v", err)
	}
	if !strings.Contains(out, "User u2 deleted") {
		t.Errorf("delete output = %q", out)
	}

	if _, _, err := e.run(t, "", "users", "activate", "u2"); err == nil {
		t.Error("activate without --device should fail")
	}

	out, _, err = e.run(t, "", "users", "activate", "u2", "--device", "dev-9")
	if err != nil {
		t.Fatalf("users activate: %v", err)
	}
	if !strings.Contains(out, "User u2 is now Active") {
		t.Errorf("activate output = %q", out)
	}

	out, _, err = e.run(t, "", "users", "deactivate", "u1")
	if err != nil {
		t.Fatalf("users deactivate: %v", err)
	}
	if !strings.Contains(out, "User u1 is now Inactive") {
		t.Errorf("deactivate output = %q", out)
	}
}

func TestRecordCommands(t *testing.T) {
	e := newCLIEnv(t)
	e.seedSession(t)

	tests := []struct {
		args []string
		want []string
		skip []string
	}{
		{args: []string{"devices"}, want: []string{"dev-42", "Ann", "3 hours ago"}},
		{args: []string{"ble"}, want: []string{"ble-7", "Bob", "never"}},
		{args: []string{"history"}, want: []string{"dev-42", "dev-9", "FAILED"}},
		{args: []string{"history", "--failed"}, want: []string{"dev-9"}, skip: []string{"dev-42"}},
		{args: []string{"history", "--limit", "1"}, want: []string{"dev-42"}, skip: []string{"dev-9"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, _, err := e.run(t, "", tt.args...)
			if err != nil {
				t.Fatalf("%v: %v", tt.args, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, skip := range tt.skip {
				if strings.Contains(out, skip) {
					t.Errorf("output should not contain %q:\n%s", skip, out)
				}
			}
		})
	}
}

func TestExpiredSessionForcesLogout(t *testing.T) {
	e := newCLIEnv(t)
	e.seedSession(t)
	e.backend.expired.Store(true)

	_, stderr, err := e.run(t, "", "devices")
	if !errors.Is(err, apiclient.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if !strings.Contains(stderr, "Session expired, run `dicer login`") {
		t.Errorf("stderr = %q", stderr)
	}
	if e.sessionExists() {
		t.Error("session file should be cleared by the forced logout")
	}

	out, _, err := e.run(t, "", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "Not logged in.") {
		t.Errorf("whoami output = %q", out)
	}
}

func TestInterceptorRemovedAfterRun(t *testing.T) {
	e := newCLIEnv(t)

	if _, _, err := e.run(t, "", "whoami"); err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if n := client.Interceptors(); n != 0 {
		t.Errorf("interceptors after run = %d, want 0", n)
	}
}
