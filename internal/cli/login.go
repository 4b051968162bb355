package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/me/dicer/internal/auth"
)

func newLoginCmd() *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the DICER backend",
		Long:  "Exchange email and password for a token and store the session for later commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if store.IsAuthenticated() {
				sess, _ := store.Session()
				fmt.Fprintf(cmd.OutOrStdout(), "Already logged in as %s\n", sess.Identity.Email)
				return nil
			}

			in := bufio.NewReader(cmd.InOrStdin())
			interactive := isInteractive(cmd.InOrStdin())

			if email == "" && interactive {
				fmt.Fprint(cmd.ErrOrStderr(), "Email: ")
				line, err := readLine(in)
				if err != nil {
					return fmt.Errorf("read email: %w", err)
				}
				email = line
			}

			var password string
			if passwordStdin || interactive {
				if interactive {
					fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				}
				line, err := readLine(in)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = line
			}

			flow := auth.NewFlow(client, cfg.StatusURL, cfg.StatusTimeout, logger)
			if flow.CheckAvailability(ctx) == auth.Unavailable {
				return errors.New("the service is currently unavailable, try again later")
			}

			sess, err := flow.Submit(ctx, store, email, password)
			if err != nil {
				var verr *auth.ValidationError
				var aerr *auth.AuthError
				switch {
				case errors.As(err, &verr):
					return errors.New(verr.Message)
				case errors.As(err, &aerr):
					return fmt.Errorf("login failed: %s", aerr.Message)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Login successful. Signed in as %s\n", sess.Identity.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted on a terminal if omitted)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, wasLoggedIn := store.Session()
			if err := store.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			if !wasLoggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s\n", sess.Identity.Email)
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, ok := store.Session()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email:   %s\n", sess.Identity.Email)
			if !sess.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Expires: %s (%s)\n", sess.ExpiresAt.Local().Format(time.DateTime), humanize.Time(sess.ExpiresAt))
			}
			return nil
		},
	}
}

// isInteractive reports whether r is a terminal.
func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// readLine reads one line without its terminator. EOF is not an error.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
