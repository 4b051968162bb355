package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/me/dicer/internal/config"
	"github.com/me/dicer/internal/store"
)

const (
	shutdownTimeout        = 5 * time.Second
	sessionCleanupInterval = 10 * time.Minute
)

// Run serves the console on cfg.Addr until ctx is done, then shuts down
// gracefully. The sqlite session backend opens (and migrates) cfg.DBPath,
// defaulting to ~/.dicer/console.db.
func Run(ctx context.Context, cfg config.ConsoleConfig, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var opts []Option
	if cfg.SessionBackend == config.SessionBackendSQLite {
		st, err := openStore(ctx, cfg.DBPath, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, WithStore(st))
	}

	srv, err := New(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer srv.Close()
	srv.StartSessionCleanup(ctx, sessionCleanupInterval)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "backend", cfg.BackendURL, "session_backend", cfg.SessionBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, dbPath string, logger *slog.Logger) (*store.SQLiteStore, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir := filepath.Join(home, ".dicer")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
		dbPath = filepath.Join(dir, "console.db")
	}

	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", "path", dbPath)
	return st, nil
}
