package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) GetValue(ctx context.Context, scope, key string) (string, bool, error) {
	s.logger.Debug("sql", "op", "select", "table", "session_values", "scope", scope, "key", key)

	var value string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM session_values WHERE scope = ? AND key = ?`,
		scope, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", scope, key, err)
	}
	if expiresAt > 0 && time.Now().Unix() >= expiresAt {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) PutValue(ctx context.Context, scope, key, value string, expiresAt time.Time) error {
	s.logger.Debug("sql", "op", "upsert", "table", "session_values", "scope", scope, "key", key)

	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_values (scope, key, value, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (scope, key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at,
		   expires_at = excluded.expires_at`,
		scope, key, value, time.Now().Unix(), exp,
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteValue(ctx context.Context, scope, key string) error {
	s.logger.Debug("sql", "op", "delete", "table", "session_values", "scope", scope, "key", key)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_values WHERE scope = ? AND key = ?`, scope, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteScope(ctx context.Context, scope string) (int64, error) {
	s.logger.Debug("sql", "op", "delete_scope", "table", "session_values", "scope", scope)

	result, err := s.db.ExecContext(ctx, `DELETE FROM session_values WHERE scope = ?`, scope)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.logger.Debug("sql", "op", "delete_expired", "table", "session_values")

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM session_values WHERE expires_at > 0 AND expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
