package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/dicer/internal/apiclient"
	"github.com/me/dicer/internal/metrics"
	"github.com/me/dicer/internal/session"
)

// DefaultStatusTimeout bounds the service status check.
const DefaultStatusTimeout = 3 * time.Second

const (
	msgFillAllFields      = "Please fill in all fields"
	msgInvalidCredentials = "Invalid credentials"
)

// Availability is the result of the service status check.
type Availability int32

const (
	AvailabilityUnknown Availability = iota
	Available
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

var (
	// ErrServiceUnavailable rejects a submit after the status check flagged
	// the service inactive.
	ErrServiceUnavailable = errors.New("login is currently disabled by the service operator")

	// ErrSubmitInFlight rejects a submit while another one for the same
	// scope has not finished.
	ErrSubmitInFlight = errors.New("a login attempt is already in progress")
)

// ValidationError is missing input caught before any network call.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthError is a failed credential exchange.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Flow runs the login view's logic.
type Flow struct {
	client        *apiclient.Client
	statusURL     string
	statusTimeout time.Duration
	logger        *slog.Logger

	availability atomic.Int32
	inFlight     sync.Map // scope -> struct{}
}

// NewFlow creates a login flow. An empty statusURL disables the status
// check; a timeout <= 0 uses DefaultStatusTimeout.
func NewFlow(client *apiclient.Client, statusURL string, statusTimeout time.Duration, logger *slog.Logger) *Flow {
	if statusTimeout <= 0 {
		statusTimeout = DefaultStatusTimeout
	}
	return &Flow{
		client:        client,
		statusURL:     statusURL,
		statusTimeout: statusTimeout,
		logger:        logger.With("component", "login"),
	}
}

// Availability returns the outcome of the last status check.
func (f *Flow) Availability() Availability {
	return Availability(f.availability.Load())
}

// CheckAvailability queries the status endpoint. Only an explicit
// "inactive" flag makes the service Unavailable; errors and timeouts count
// as Available.
func (f *Flow) CheckAvailability(ctx context.Context) Availability {
	result := Available
	if f.statusURL != "" {
		ctx, cancel := context.WithTimeout(ctx, f.statusTimeout)
		defer cancel()

		status, err := f.client.ServiceStatus(ctx, f.statusURL)
		switch {
		case err != nil:
			f.logger.Debug("status check failed, allowing login", "error", err)
		case status == "inactive":
			result = Unavailable
		}
	}

	if prev := Availability(f.availability.Swap(int32(result))); prev != result {
		f.logger.Info("service availability", "state", result.String())
	}
	metrics.SetAvailable(result == Available)
	return result
}

// Submit validates the credentials, exchanges them for a token and logs
// store in. On failure the store is left as it was.
func (f *Flow) Submit(ctx context.Context, store *session.Store, email, password string) (session.Session, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginValidation).Inc()
		return session.Session{}, err
	}

	if f.Availability() == Unavailable {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginUnavailable).Inc()
		return session.Session{}, ErrServiceUnavailable
	}

	key := inFlightKey(store)
	if _, busy := f.inFlight.LoadOrStore(key, struct{}{}); busy {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginInFlight).Inc()
		return session.Session{}, ErrSubmitInFlight
	}
	defer f.inFlight.Delete(key)

	res, err := f.client.Login(ctx, apiclient.Credentials{Email: email, Password: password})
	if err != nil {
		outcome := metrics.LoginError
		if apiclient.StatusCode(err) != 0 {
			outcome = metrics.LoginInvalid
		}
		metrics.LoginAttempts.WithLabelValues(outcome).Inc()
		f.logger.Info("login rejected", "email", email, "error", err)

		msg := apiclient.Detail(err)
		if msg == "" {
			msg = msgInvalidCredentials
		}
		return session.Session{}, &AuthError{Message: msg, Err: err}
	}

	canonical := res.Email
	if canonical == "" {
		canonical = email
	}
	if res.Token == "" {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
		return session.Session{}, &AuthError{Message: msgInvalidCredentials, Err: errors.New("login response carried no token")}
	}

	if err := store.Login(ctx, res.Token, canonical); err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
		return session.Session{}, fmt.Errorf("establish session: %w", err)
	}
	metrics.LoginAttempts.WithLabelValues(metrics.LoginSuccess).Inc()

	sess, _ := store.Session()
	return sess, nil
}

func validateCredentials(email, password string) error {
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ValidationError{Message: msgFillAllFields, Fields: missing}
	}
	return nil
}

func inFlightKey(store *session.Store) any {
	if scope := store.Scope(); scope != "" {
		return scope
	}
	return store
}
