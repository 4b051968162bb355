package store

import (
	"context"
	"time"
)

// Store persists namespaced key/value entries. The console uses it as the
// server-side durable storage behind browser session scopes.
type Store interface {
	// GetValue returns the value for (scope, key). ok is false when the
	// entry is absent or expired.
	GetValue(ctx context.Context, scope, key string) (value string, ok bool, err error)
	// PutValue inserts or replaces an entry. A zero expiresAt never expires.
	PutValue(ctx context.Context, scope, key, value string, expiresAt time.Time) error
	// DeleteValue removes an entry. Deleting a missing entry is not an error.
	DeleteValue(ctx context.Context, scope, key string) error
	// DeleteScope removes every entry of a scope.
	DeleteScope(ctx context.Context, scope string) (int64, error)
	// DeleteExpired removes entries whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
