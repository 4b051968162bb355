package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session storage backends.
const (
	SessionBackendCookie = "cookie" // signed browser cookie
	SessionBackendSQLite = "sqlite" // server-side rows keyed by a scope cookie
)

// ConsoleConfig holds configuration for the DICER console server and CLI.
type ConsoleConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json, auto

	BackendURL     string        `yaml:"backend_url"`     // REST backend base URL; API paths live under /api
	StatusURL      string        `yaml:"status_url"`      // Optional service status endpoint (empty disables the check)
	StatusTimeout  time.Duration `yaml:"status_timeout"`  // Bound on the status check before failing open
	RequestTimeout time.Duration `yaml:"request_timeout"` // Per-request timeout for backend calls

	SessionBackend string `yaml:"session_backend"` // cookie or sqlite
	SessionSecret  string `yaml:"session_secret"`  // Cookie signing key (>= 32 bytes)
	SecureCookies  bool   `yaml:"secure_cookies"`  // Set the Secure flag (HTTPS deployments)
	DBPath         string `yaml:"db_path"`         // SQLite path for the sqlite backend (":memory:" for testing)

	LoginRatePerMinute int `yaml:"login_rate_per_minute"` // Login attempts per client IP per minute (0 disables)
	LoginBurst         int `yaml:"login_burst"`

	CredentialsPath string `yaml:"credentials_path"` // CLI session file (default ~/.dicer/session.json)
}

// DefaultConsoleConfig returns sensible defaults.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		Addr:               ":8080",
		LogLevel:           "info",
		LogFormat:          "text",
		BackendURL:         "http://localhost:8001",
		StatusTimeout:      3 * time.Second,
		RequestTimeout:     30 * time.Second,
		SessionBackend:     SessionBackendCookie,
		LoginRatePerMinute: 10,
		LoginBurst:         5,
	}
}

// Load builds a config from defaults, an optional YAML file, a .env file in
// the working directory (if present) and DICER_* environment variables, in
// that order of precedence (later wins).
func Load(path string) (ConsoleConfig, error) {
	cfg := DefaultConsoleConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *ConsoleConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays DICER_* variables. lookup is os.LookupEnv in production.
func (c *ConsoleConfig) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DICER_ADDR", &c.Addr)
	str("DICER_LOG_LEVEL", &c.LogLevel)
	str("DICER_LOG_FORMAT", &c.LogFormat)
	str("DICER_BACKEND_URL", &c.BackendURL)
	str("DICER_STATUS_URL", &c.StatusURL)
	str("DICER_SESSION_BACKEND", &c.SessionBackend)
	str("DICER_SESSION_SECRET", &c.SessionSecret)
	str("DICER_DB_PATH", &c.DBPath)
	str("DICER_CREDENTIALS", &c.CredentialsPath)

	for key, dst := range map[string]*time.Duration{
		"DICER_STATUS_TIMEOUT":  &c.StatusTimeout,
		"DICER_REQUEST_TIMEOUT": &c.RequestTimeout,
	} {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	for key, dst := range map[string]*int{
		"DICER_LOGIN_RATE_PER_MINUTE": &c.LoginRatePerMinute,
		"DICER_LOGIN_BURST":           &c.LoginBurst,
	} {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup("DICER_SECURE_COOKIES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DICER_SECURE_COOKIES: %w", err)
		}
		c.SecureCookies = b
	}
	return nil
}

// Validate checks the settings the server needs before it starts.
func (c ConsoleConfig) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_url %q is not an absolute URL", c.BackendURL)
	}
	if c.StatusURL != "" {
		if u, err := url.Parse(c.StatusURL); err != nil || u.Scheme == "" {
			return fmt.Errorf("status_url %q is not an absolute URL", c.StatusURL)
		}
	}
	switch strings.ToLower(c.SessionBackend) {
	case SessionBackendCookie:
		if len(c.SessionSecret) < 32 {
			return errors.New("session_secret must be at least 32 bytes for the cookie backend")
		}
	case SessionBackendSQLite:
	default:
		return fmt.Errorf("unknown session_backend %q (want cookie or sqlite)", c.SessionBackend)
	}
	if c.StatusTimeout <= 0 {
		return errors.New("status_timeout must be positive")
	}
	return nil
}

// APIBase returns the backend base URL with the /api prefix.
func (c ConsoleConfig) APIBase() string {
	return strings.TrimRight(c.BackendURL, "/") + "/api"
}
