package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// CookieName is the name of the signed session cookie.
const CookieName = "dicer_session"

// CookieStorage keeps entries in a signed browser cookie, bound to one
// request/response pair. Writes call Save, so they must happen before the
// response body is written.
type CookieStorage struct {
	store sessions.Store
	w     http.ResponseWriter
	r     *http.Request
}

// NewCookieStorage binds a gorilla/sessions store to a request.
func NewCookieStorage(store sessions.Store, w http.ResponseWriter, r *http.Request) *CookieStorage {
	return &CookieStorage{store: store, w: w, r: r}
}

// NewCookieStore creates the signed cookie store shared by all requests.
func NewCookieStore(secret []byte, secure bool, maxAge int) *sessions.CookieStore {
	cs := sessions.NewCookieStore(secret)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	cs.MaxAge(maxAge)
	return cs
}

// session returns the request's cookie session. A cookie that fails
// signature or decode checks yields a fresh, empty session: a tampered
// cookie reads as logged out.
func (c *CookieStorage) session() *sessions.Session {
	sess, err := c.store.Get(c.r, CookieName)
	if err != nil && sess == nil {
		sess = sessions.NewSession(c.store, CookieName)
		sess.Options = &sessions.Options{Path: "/", HttpOnly: true}
	}
	return sess
}

func (c *CookieStorage) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.session().Values[key].(string)
	return v, ok, nil
}

func (c *CookieStorage) Set(_ context.Context, key, value string) error {
	sess := c.session()
	sess.Values[key] = value
	if err := sess.Save(c.r, c.w); err != nil {
		return fmt.Errorf("save session cookie: %w", err)
	}
	return nil
}

func (c *CookieStorage) Delete(_ context.Context, key string) error {
	sess := c.session()
	if _, ok := sess.Values[key]; !ok {
		return nil
	}
	delete(sess.Values, key)
	if len(sess.Values) == 0 {
		sess.Options.MaxAge = -1
	}
	if err := sess.Save(c.r, c.w); err != nil {
		return fmt.Errorf("save session cookie: %w", err)
	}
	return nil
}
