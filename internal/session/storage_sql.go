package session

import (
	"context"
	"time"

	"github.com/me/dicer/internal/store"
)

// SQLStorage keeps entries server side in a store.Store, namespaced by
// scope. Entries expire after ttl (0 keeps them until deleted).
type SQLStorage struct {
	store store.Store
	scope string
	ttl   time.Duration
}

// NewSQLStorage returns storage for one scope.
func NewSQLStorage(st store.Store, scope string, ttl time.Duration) *SQLStorage {
	return &SQLStorage{store: st, scope: scope, ttl: ttl}
}

func (s *SQLStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.GetValue(ctx, s.scope, key)
}

func (s *SQLStorage) Set(ctx context.Context, key, value string) error {
	var exp time.Time
	if s.ttl > 0 {
		exp = time.Now().Add(s.ttl)
	}
	return s.store.PutValue(ctx, s.scope, key, value, exp)
}

func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	return s.store.DeleteValue(ctx, s.scope, key)
}
