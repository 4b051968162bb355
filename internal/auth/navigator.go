package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Console paths the gate and interceptor navigate to.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Navigator performs a hard navigation away from whatever the caller was
// doing.
type Navigator interface {
	Navigate(ctx context.Context, target string)
}

// navigation holds a redirect requested while a request was being handled.
type navigation struct {
	mu     sync.Mutex
	target string
}

type navKey struct{}

// WithNavigation installs a redirect recorder in ctx. WebNavigator writes
// to it and ForcedRedirect reads it back.
func WithNavigation(ctx context.Context) context.Context {
	return context.WithValue(ctx, navKey{}, &navigation{})
}

// ForcedRedirect returns the redirect recorded for this request, if any.
func ForcedRedirect(ctx context.Context) (string, bool) {
	nav, _ := ctx.Value(navKey{}).(*navigation)
	if nav == nil {
		return "", false
	}
	nav.mu.Lock()
	defer nav.mu.Unlock()
	return nav.target, nav.target != ""
}

// WebNavigator records the target in the request context. The render path
// turns the recorded target into the actual response.
type WebNavigator struct{}

func (WebNavigator) Navigate(ctx context.Context, target string) {
	nav, _ := ctx.Value(navKey{}).(*navigation)
	if nav == nil {
		return
	}
	nav.mu.Lock()
	if nav.target == "" {
		nav.target = target
	}
	nav.mu.Unlock()
}

// CLINavigator tells the operator to log in again.
type CLINavigator struct {
	Out io.Writer
}

func (n CLINavigator) Navigate(_ context.Context, target string) {
	if target == LoginPath {
		fmt.Fprintln(n.Out, "Session expired, run `dicer login` to sign in again.")
		return
	}
	fmt.Fprintf(n.Out, "Continue at %s\n", target)
}

// IsHTMX reports whether r was issued by htmx.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// Redirect sends a full-page redirect. htmx requests get HX-Redirect so the
// browser navigates instead of swapping the target into the page.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
