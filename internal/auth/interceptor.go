package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/me/dicer/internal/apiclient"
	"github.com/me/dicer/internal/metrics"
	"github.com/me/dicer/internal/session"
)

// UnauthorizedInterceptor ends the session when the backend rejects an
// authenticated call with 401, then asks the navigator to send the
// operator to the login view.
type UnauthorizedInterceptor struct {
	nav    Navigator
	logger *slog.Logger
}

// NewUnauthorizedInterceptor creates the interceptor.
func NewUnauthorizedInterceptor(nav Navigator, logger *slog.Logger) *UnauthorizedInterceptor {
	return &UnauthorizedInterceptor{nav: nav, logger: logger.With("component", "auth")}
}

// InterceptResponse implements apiclient.ResponseInterceptor. Logout has
// completed before Navigate is called.
func (u *UnauthorizedInterceptor) InterceptResponse(ctx context.Context, resp *apiclient.Response) error {
	if resp.StatusCode != http.StatusUnauthorized || !resp.Authenticated {
		return nil
	}

	if store := session.FromContext(ctx); store != nil {
		if err := store.Logout(ctx); err != nil {
			u.logger.Warn("forced logout: clear storage", "scope", store.Scope(), "error", err)
		}
		u.logger.Info("session rejected by backend", "scope", store.Scope(), "route", resp.Route)
	}
	metrics.ForcedLogouts.Inc()

	u.nav.Navigate(ctx, LoginPath)
	return apiclient.ErrSessionExpired
}

// Register installs the interceptor on client and returns the function that
// removes it.
func (u *UnauthorizedInterceptor) Register(client *apiclient.Client) (remove func()) {
	return client.Use(u)
}
