package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/dicer/internal/auth"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the service accepts logins",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			flow := auth.NewFlow(client, cfg.StatusURL, cfg.StatusTimeout, logger)
			availability := flow.CheckAvailability(cmd.Context())

			fmt.Fprintf(out, "Backend: %s\n", cfg.BackendURL)
			if cfg.StatusURL == "" {
				fmt.Fprintf(out, "Service: %s (no status endpoint configured)\n", availability)
			} else {
				fmt.Fprintf(out, "Service: %s\n", availability)
			}
			if sess, ok := store.Session(); ok {
				fmt.Fprintf(out, "Session: %s\n", sess.Identity.Email)
			} else {
				fmt.Fprintln(out, "Session: not logged in")
			}
			return nil
		},
	}
}
