package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Persisted keys. Absence of either means logged out.
const (
	TokenKey = "dicer_token"
	EmailKey = "dicer_email"
)

// Listener is invoked after every state change.
type Listener func(Change)

// Store is the session state of one scope.
type Store struct {
	storage Storage
	scope   string
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     State
	session   Session
	listeners map[int]Listener
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithScope names the scope (browser scope id, "cli", ...). Used in logs
// and to serialize login submissions per scope.
func WithScope(scope string) Option {
	return func(s *Store) { s.scope = scope }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store in the Loading state over the given storage.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:   storage,
		logger:    slog.Default(),
		now:       time.Now,
		state:     Loading,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session", "scope", s.scope)
	return s
}

// Scope returns the scope name.
func (s *Store) Scope() string {
	return s.scope
}

// State returns the current tagged state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading reports whether Initialize has not completed yet.
func (s *Store) Loading() bool {
	return s.State() == Loading
}

// IsAuthenticated reports whether a session is populated.
func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// Session returns the current snapshot; ok is false unless Authenticated.
func (s *Store) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.state == Authenticated
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Token
}

// Initialize reads the persisted token and email. Both present (and the
// token not known to be expired) populates the session; anything else
// leaves it empty. Calling it again re-reads storage and yields the same
// state for the same persisted values.
//
// A storage read error is returned. A store that has never initialized
// stays Loading in that case; an initialized store keeps its state.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()

	token, tokenOK, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("read %s: %w", TokenKey, err)
	}
	email, emailOK, err := s.storage.Get(ctx, EmailKey)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("read %s: %w", EmailKey, err)
	}

	next := Session{}
	if tokenOK && emailOK && token != "" && email != "" {
		next = newSession(token, email)
		if next.Expired(s.now()) {
			s.logger.Info("persisted token expired", "email", email, "expired_at", next.ExpiresAt)
			next = Session{}
			s.clearStorage(ctx)
		}
	} else if tokenOK != emailOK {
		// Half a session is no session; drop the orphan entry.
		s.clearStorage(ctx)
	}

	change, changed := s.transition(next)
	s.mu.Unlock()

	if changed {
		s.notify(change)
	}
	return nil
}

// Login persists token and email and populates the session. The in-memory
// state changes only after both writes succeed; a failed second write
// removes the first so storage never holds half a session.
func (s *Store) Login(ctx context.Context, token, email string) error {
	if token == "" || email == "" {
		return ErrIncompleteSession
	}

	s.mu.Lock()
	if err := s.storage.Set(ctx, TokenKey, token); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("write %s: %w", TokenKey, err)
	}
	if err := s.storage.Set(ctx, EmailKey, email); err != nil {
		_ = s.storage.Delete(ctx, TokenKey)
		s.mu.Unlock()
		return fmt.Errorf("write %s: %w", EmailKey, err)
	}

	change, changed := s.transition(newSession(token, email))
	s.mu.Unlock()

	s.logger.Info("session established", "email", email)
	if changed {
		s.notify(change)
	}
	return nil
}

// Logout clears storage and resets the session. It is idempotent. The
// in-memory reset always happens; storage delete errors are returned.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	err := s.clearStorage(ctx)
	prev := s.session
	change, changed := s.transition(Session{})
	s.mu.Unlock()

	if changed {
		if prev.Identity.Email != "" {
			s.logger.Info("session cleared", "email", prev.Identity.Email)
		}
		s.notify(change)
	}
	return err
}

// Subscribe registers fn for state changes and returns a function that
// removes it. The returned function is safe to call more than once.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// transition sets the new session and derived state. Caller holds mu.
func (s *Store) transition(next Session) (Change, bool) {
	to := Unauthenticated
	if !next.IsZero() {
		to = Authenticated
	}
	from := s.state
	same := from == to && s.session.equal(next)
	s.state = to
	s.session = next
	if same {
		return Change{}, false
	}
	return Change{From: from, To: to, Session: next}, true
}

// clearStorage deletes both keys. Caller holds mu.
func (s *Store) clearStorage(ctx context.Context) error {
	return errors.Join(
		s.storage.Delete(ctx, TokenKey),
		s.storage.Delete(ctx, EmailKey),
	)
}

func (s *Store) notify(c Change) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.logger.Debug("state changed", "from", c.From.String(), "to", c.To.String())
	for _, l := range listeners {
		l(c)
	}
}

func newSession(token, email string) Session {
	sess := Session{Token: token, Identity: Identity{Email: email}}
	if info, err := ParseToken(token); err == nil {
		sess.ExpiresAt = info.ExpiresAt
	}
	return sess
}
