package ui

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/me/dicer/internal/apiclient"
	"github.com/me/dicer/internal/auth"
	"github.com/me/dicer/internal/session"
	"github.com/me/dicer/pkg/model"
)

// UI handles the web console pages.
type UI struct {
	client    *apiclient.Client
	gate      *auth.Gate
	flow      *auth.Flow
	limiter   *loginLimiter
	logger    *slog.Logger
	startTime time.Time
}

// Config holds UI configuration.
type Config struct {
	LoginRatePerMinute int // 0 disables login throttling
	LoginBurst         int
}

// New creates the console UI.
func New(client *apiclient.Client, gate *auth.Gate, flow *auth.Flow, logger *slog.Logger, cfg Config) *UI {
	return &UI{
		client:    client,
		gate:      gate,
		flow:      flow,
		limiter:   newLoginLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst),
		logger:    logger.With("component", "ui"),
		startTime: time.Now(),
	}
}

// HandleLogin renders the login page. Each render re-runs the service
// status check; an inactive service disables the submit button.
func (ui *UI) HandleLogin(w http.ResponseWriter, r *http.Request) {
	availability := ui.flow.CheckAvailability(r.Context())

	data := map[string]any{
		"Title":       "Login - DICER",
		"Email":       r.URL.Query().Get("email"),
		"Unavailable": availability == auth.Unavailable,
	}
	ui.render(w, r, http.StatusOK, "login", data)
}

// HandleLoginPost processes the login form.
func (ui *UI) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ui.redirectWith(w, r, auth.LoginPath, "error", "Invalid request")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	store := session.FromContext(r.Context())

	sess, err := ui.flow.Submit(r.Context(), store, email, password)
	if err != nil {
		var (
			ve *auth.ValidationError
			ae *auth.AuthError
		)
		msg := "Could not sign in, please try again"
		switch {
		case errors.As(err, &ve):
			msg = ve.Message
		case errors.As(err, &ae):
			msg = ae.Message
		case errors.Is(err, auth.ErrServiceUnavailable), errors.Is(err, auth.ErrSubmitInFlight):
			msg = err.Error()
		default:
			ui.logger.Error("login failed", "email", email, "error", err)
		}
		q := url.Values{"error": {msg}}
		if email != "" {
			q.Set("email", email)
		}
		auth.Redirect(w, r, auth.LoginPath+"?"+q.Encode())
		return
	}

	ui.logger.Info("user logged in", "email", sess.Identity.Email, "scope", store.Scope())
	ui.redirectWith(w, r, auth.DashboardPath, "ok", "Login successful")
}

// HandleLogout clears the session and returns to the login page.
func (ui *UI) HandleLogout(w http.ResponseWriter, r *http.Request) {
	store := session.FromContext(r.Context())
	if store != nil {
		email := ""
		if id := identity(r.Context()); id != nil {
			email = id.Email
		}
		if err := store.Logout(r.Context()); err != nil {
			ui.logger.Warn("logout: clear storage", "scope", store.Scope(), "error", err)
		}
		if email != "" {
			ui.logger.Info("user logged out", "email", email, "scope", store.Scope())
		}
	}
	ui.redirectWith(w, r, auth.LoginPath, "ok", "Logged out")
}

// HandleDashboard renders the overview.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	count, err := ui.client.CountUsers(r.Context())
	if err != nil {
		ui.fail(w, r, "Failed to load user count", err)
		return
	}

	data := map[string]any{
		"Title":     "Dashboard - DICER",
		"UserCount": count,
		"Uptime":    time.Since(ui.startTime).Round(time.Second).String(),
	}
	ui.render(w, r, http.StatusOK, "dashboard", data)
}

// HandleRoot sends "/" and unknown paths to the dashboard.
func (ui *UI) HandleRoot(w http.ResponseWriter, r *http.Request) {
	auth.Redirect(w, r, auth.DashboardPath)
}

// --- Helper Methods ---

func (ui *UI) parseListOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	opts.Query = strings.TrimSpace(r.URL.Query().Get("q"))
	return opts
}

func (ui *UI) buildPagination(pg model.Pagination, query string) map[string]any {
	return map[string]any{
		"Total":      pg.Total,
		"Limit":      pg.Limit,
		"Offset":     pg.Offset,
		"HasMore":    pg.HasMore,
		"HasPrev":    pg.Offset > 0,
		"NextOffset": pg.Offset + pg.Limit,
		"PrevOffset": max(0, pg.Offset-pg.Limit),
		"Query":      query,
	}
}

// matches reports whether any of fields contains q, ignoring case.
func matches(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// redirectWith redirects to target with a flash notice in the query.
func (ui *UI) redirectWith(w http.ResponseWriter, r *http.Request, target, kind, msg string) {
	auth.Redirect(w, r, target+"?"+url.Values{kind: {msg}}.Encode())
}

// forced handles a redirect requested by the unauthorized interceptor
// during this request. It reports whether a response was written.
func (ui *UI) forced(w http.ResponseWriter, r *http.Request) bool {
	target, ok := auth.ForcedRedirect(r.Context())
	if !ok {
		return false
	}
	auth.Redirect(w, r, target+"?"+url.Values{"error": {"Your session has expired, please sign in again"}}.Encode())
	return true
}

// userMessage picks the text shown for a failed backend call.
func userMessage(fallback string, err error) string {
	var ve *model.APIError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if d := apiclient.Detail(err); d != "" {
		return fallback + ": " + d
	}
	return fallback
}

// fail renders a page load failure, or the forced redirect if the backend
// ended the session.
func (ui *UI) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	if ui.forced(w, r) {
		return
	}
	status := http.StatusBadGateway
	if apiclient.StatusCode(err) == http.StatusNotFound {
		status = http.StatusNotFound
	}
	ui.renderError(w, r, status, userMessage(message, err), err)
}

// failAction redirects back to target with an error notice after a failed
// mutation.
func (ui *UI) failAction(w http.ResponseWriter, r *http.Request, target, message string, err error) {
	if ui.forced(w, r) {
		return
	}
	ui.logger.Warn(message, "error", err)
	ui.redirectWith(w, r, target, "error", userMessage(message, err))
}

func (ui *UI) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if ui.forced(w, r) {
		return
	}

	if id := identity(r.Context()); id != nil {
		data["Session"] = id
	}
	data["Path"] = r.URL.Path
	q := r.URL.Query()
	if _, ok := data["OK"]; !ok {
		data["OK"] = q.Get("ok")
	}
	if _, ok := data["Error"]; !ok {
		data["Error"] = q.Get("error")
	}

	var buf bytes.Buffer
	if err := renderTemplate(&buf, name, data); err != nil {
		ui.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	ui.logger.Error(message, "error", err)
	data := map[string]any{
		"Title":   "Error - DICER",
		"Message": message,
		"Error":   "",
	}
	ui.render(w, r, status, "error", data)
}
