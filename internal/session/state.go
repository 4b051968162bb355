package session

import "time"

// State is the tagged session state.
type State int

const (
	// Loading means Initialize has not completed yet.
	Loading State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Identity is the logged-in operator.
type Identity struct {
	Email string `json:"email"`
}

// Session is a snapshot of a populated session. Token and Identity are
// either both set or both empty.
type Session struct {
	Token     string    `json:"-"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at,omitzero"` // zero when the token carries no exp claim
}

// IsZero reports whether the snapshot is the empty session.
func (s Session) IsZero() bool {
	return s.Token == "" && s.Identity.Email == ""
}

// Expired reports whether the token's expiry has passed. Sessions without
// a known expiry never expire on the console side.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s Session) equal(o Session) bool {
	return s.Token == o.Token && s.Identity == o.Identity && s.ExpiresAt.Equal(o.ExpiresAt)
}

// Change describes a state transition delivered to subscribers.
type Change struct {
	From    State
	To      State
	Session Session // empty unless To is Authenticated
}
