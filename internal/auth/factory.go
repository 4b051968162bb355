package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/me/dicer/internal/session"
	"github.com/me/dicer/internal/store"
)

// ScopeCookie names the browser scope id cookie.
const ScopeCookie = "console_sid"

// ScopeID returns the browser's scope id, issuing a new one on w when the
// request carries none.
func ScopeID(w http.ResponseWriter, r *http.Request, secure bool) string {
	if c, err := r.Cookie(ScopeCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     ScopeCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	// Later reads in this request see the new id.
	r.AddCookie(&http.Cookie{Name: ScopeCookie, Value: id})
	return id
}

// CookieStoreFactory keeps the session in a signed browser cookie.
type CookieStoreFactory struct {
	Cookies sessions.Store
	Secure  bool
	Logger  *slog.Logger
}

func (f *CookieStoreFactory) NewStore(w http.ResponseWriter, r *http.Request) *session.Store {
	scope := ScopeID(w, r, f.Secure)
	return session.NewStore(session.NewCookieStorage(f.Cookies, w, r),
		session.WithScope(scope),
		session.WithLogger(f.Logger),
	)
}

// SQLStoreFactory keeps the session server side, one row set per scope.
type SQLStoreFactory struct {
	Store  store.Store
	TTL    time.Duration
	Secure bool
	Logger *slog.Logger
}

func (f *SQLStoreFactory) NewStore(w http.ResponseWriter, r *http.Request) *session.Store {
	scope := ScopeID(w, r, f.Secure)
	return session.NewStore(session.NewSQLStorage(f.Store, scope, f.TTL),
		session.WithScope(scope),
		session.WithLogger(f.Logger),
	)
}
