package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/dicer/internal/auth"
	"github.com/me/dicer/internal/config"
	"github.com/me/dicer/internal/session"
	"github.com/me/dicer/internal/store"
)

// SessionDuration bounds how long a browser session is kept.
const SessionDuration = 24 * time.Hour

// NewStoreFactory builds the per-browser store factory for the configured
// session backend. st is required for the sqlite backend.
func NewStoreFactory(cfg config.ConsoleConfig, st store.Store, logger *slog.Logger) (auth.StoreFactory, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendCookie, "":
		cookies := session.NewCookieStore([]byte(cfg.SessionSecret), cfg.SecureCookies, int(SessionDuration.Seconds()))
		return &auth.CookieStoreFactory{Cookies: cookies, Secure: cfg.SecureCookies, Logger: logger}, nil
	case config.SessionBackendSQLite:
		if st == nil {
			return nil, fmt.Errorf("session backend %q needs a database", cfg.SessionBackend)
		}
		return &auth.SQLStoreFactory{Store: st, TTL: SessionDuration, Secure: cfg.SecureCookies, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// CleanupExpiredSessions removes server-side session rows past their
// expiry every interval until ctx is done.
func CleanupExpiredSessions(ctx context.Context, st store.Store, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions removed", "rows", n)
			}
		}
	}
}

// identity returns the logged-in identity for templates, or nil.
func identity(ctx context.Context) *session.Identity {
	s := session.FromContext(ctx)
	if s == nil {
		return nil
	}
	sess, ok := s.Session()
	if !ok {
		return nil
	}
	return &sess.Identity
}
