package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/me/dicer/internal/config"
	"github.com/me/dicer/internal/logging"
	"github.com/me/dicer/internal/server"
)

func main() {
	configFile := flag.String("config", "", "Path to console config file (YAML)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	backendURL := flag.String("backend", "", "Backend base URL (overrides config)")
	statusURL := flag.String("status-url", "", "Service status endpoint (overrides config)")
	sessionBackend := flag.String("session-backend", "", "Session backend: cookie, sqlite (overrides config)")
	dbPath := flag.String("db", "", "SQLite path for the sqlite session backend (default ~/.dicer/console.db)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (text, json, auto)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Addr, *addr)
	override(&cfg.BackendURL, *backendURL)
	override(&cfg.StatusURL, *statusURL)
	override(&cfg.SessionBackend, *sessionBackend)
	override(&cfg.DBPath, *dbPath)
	override(&cfg.LogLevel, *logLevel)
	override(&cfg.LogFormat, *logFormat)
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
