// Package cli implements the dicer command-line console. Its session scope
// is the local user account, persisted in a JSON file.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/dicer/internal/apiclient"
	"github.com/me/dicer/internal/auth"
	"github.com/me/dicer/internal/config"
	"github.com/me/dicer/internal/logging"
	"github.com/me/dicer/internal/session"
)

// cliScope names the single session scope of the CLI.
const cliScope = "cli"

// skipSession marks commands that do not use the CLI session.
const skipSession = "dicer/skip-session"

var errNotLoggedIn = errors.New("not logged in, run `dicer login` first")

var (
	flagServer      string
	flagConfig      string
	flagCredentials string
	flagDebug       bool
	flagLogLevel    string
	flagLogFormat   string

	cfg    config.ConsoleConfig
	logger *slog.Logger
	client *apiclient.Client
	store  *session.Store

	removeInterceptor func()
)

// NewRootCmd creates the root cobra command for the dicer CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dicer",
		Short: "DICER admin console",
		Long:  "dicer manages users, devices, BLE ids and login history of a DICER backend.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd)
			if err != nil {
				return err
			}
			logger = newLogger(cmd)

			if cmd.Annotations[skipSession] != "" {
				return nil
			}
			return openSession(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if removeInterceptor != nil {
				removeInterceptor()
				removeInterceptor = nil
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", "", "Backend base URL (or DICER_BACKEND_URL env)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (YAML)")
	root.PersistentFlags().StringVar(&flagCredentials, "credentials", "", "Session file (default ~/.dicer/session.json)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json, auto)")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newUsersCmd(),
		newDevicesCmd(),
		newBLECmd(),
		newHistoryCmd(),
		newStatusCmd(),
		newServeCmd(),
	)

	return root
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(cmd *cobra.Command) (config.ConsoleConfig, error) {
	c, err := config.Load(flagConfig)
	if err != nil {
		return c, err
	}
	if flagServer != "" {
		c.BackendURL = flagServer
	}
	if flagCredentials != "" {
		c.CredentialsPath = flagCredentials
	}
	// The CLI logs to stderr and stays quiet unless asked.
	c.LogLevel = flagLogLevel
	if flagDebug {
		c.LogLevel = "debug"
	}
	if cmd.Flags().Changed("log-format") {
		c.LogFormat = flagLogFormat
	}
	return c, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	return logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
}

// openSession loads the persisted session, builds the backend client and
// installs the unauthorized interceptor. The store travels in the command
// context so the client attaches its token.
func openSession(cmd *cobra.Command) error {
	path := cfg.CredentialsPath
	if path == "" {
		var err error
		if path, err = session.DefaultFilePath(); err != nil {
			return err
		}
	}

	store = session.NewStore(session.NewFileStorage(path),
		session.WithScope(cliScope),
		session.WithLogger(logger),
	)
	if err := store.Initialize(cmd.Context()); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	// PersistentPostRun is skipped when a command fails.
	if removeInterceptor != nil {
		removeInterceptor()
	}
	client = apiclient.New(cfg.APIBase(), cfg.RequestTimeout, logger)
	removeInterceptor = auth.NewUnauthorizedInterceptor(auth.CLINavigator{Out: cmd.ErrOrStderr()}, logger).Register(client)

	cmd.SetContext(session.WithStore(cmd.Context(), store))
	return nil
}

// requireLogin fails fast when no session is persisted.
func requireLogin() error {
	if !store.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}
