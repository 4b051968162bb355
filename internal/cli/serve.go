package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/me/dicer/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr           string
		sessionBackend string
		dbPath         string
	)

	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Run the web console",
		Annotations: map[string]string{skipSession: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Addr = addr
			}
			if sessionBackend != "" {
				cfg.SessionBackend = sessionBackend
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if !cmd.Flags().Changed("log-level") && !flagDebug {
				cfg.LogLevel = "info"
			}
			if !cmd.Flags().Changed("log-format") {
				cfg.LogFormat = "auto"
			}
			srvLogger := newLogger(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, cfg, srvLogger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8080)")
	cmd.Flags().StringVar(&sessionBackend, "session-backend", "", "Session backend: cookie, sqlite")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path for the sqlite session backend")
	return cmd
}
