package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/dicer/pkg/model"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}
	cmd.AddCommand(
		newUsersListCmd(),
		newUsersCountCmd(),
		newUsersCreateCmd(),
		newUsersDeleteCmd(),
		newUsersStatusCmd(model.UserStatusActive),
		newUsersStatusCmd(model.UserStatusInactive),
	)
	return cmd
}

func newUsersListCmd() *cobra.Command {
	var (
		query  string
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			var want model.UserStatus
			if status != "" {
				s, ok := model.ParseUserStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (want active or inactive)", status)
				}
				want = s
			}

			users, err := client.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}

			q := strings.ToLower(strings.TrimSpace(query))
			var shown []model.User
			for _, u := range users {
				if want != "" && u.Status != want {
					continue
				}
				if q != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Phone+" "+u.ID), q) {
					continue
				}
				shown = append(shown, u)
			}

			out := cmd.OutOrStdout()
			if len(shown) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}

			fmt.Fprintf(out, "%-24s  %-20s  %-14s  %-8s  %-16s  %s\n", "ID", "NAME", "PHONE", "STATUS", "DEVICE", "CREATED")
			fmt.Fprintf(out, "%-24s  %-20s  %-14s  %-8s  %-16s  %s\n", "--", "----", "-----", "------", "------", "-------")
			for _, u := range shown {
				fmt.Fprintf(out, "%-24s  %-20s  %-14s  %-8s  %-16s  %s\n",
					u.ID, u.Name, u.Phone, u.Status, dash(strings.Join(u.DeviceIDs, ",")), ago(u.CreatedAt))
			}
			if len(shown) != len(users) {
				fmt.Fprintf(out, "\n(%s of %s shown)\n", humanize.Comma(int64(len(shown))), humanize.Comma(int64(len(users))))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter by name, phone or id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active, inactive)")
	return cmd
}

func newUsersCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the total number of users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			n, err := client.CountUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("count users: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), humanize.Comma(int64(n)))
			return nil
		},
	}
}

func newUsersCreateCmd() *cobra.Command {
	var nu model.NewUser

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print the generated password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			u, err := client.CreateUser(cmd.Context(), nu)
			if err != nil {
				var ve *model.APIError
				if errors.As(err, &ve) && ve.Code == model.ErrValidation {
					return fmt.Errorf("%s (missing: %s)", ve.Message, ve.Fields())
				}
				return fmt.Errorf("create user: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User created: %s\n", u.ID)
			fmt.Fprintf(out, "  Name:     %s\n", u.Name)
			fmt.Fprintf(out, "  Phone:    %s\n", u.Phone)
			if u.Password != "" {
				fmt.Fprintf(out, "  Password: %s\n", u.Password)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&nu.Name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&nu.Phone, "phone", "", "Phone number (required)")
	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user_id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			if err := client.DeleteUser(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted\n", args[0])
			return nil
		},
	}
}

// newUsersStatusCmd builds "activate" or "deactivate".
func newUsersStatusCmd(status model.UserStatus) *cobra.Command {
	var deviceID string

	use, short := "deactivate", "Deactivate a user"
	if status == model.UserStatusActive {
		use, short = "activate", "Activate a user on a device"
	}

	cmd := &cobra.Command{
		Use:   use + " <user_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			change := model.StatusChange{Status: status, DeviceID: deviceID}
			if err := client.SetUserStatus(cmd.Context(), args[0], change); err != nil {
				return fmt.Errorf("%s user: %w", use, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s\n", args[0], status)
			return nil
		},
	}

	if status == model.UserStatusActive {
		cmd.Flags().StringVar(&deviceID, "device", "", "Device id to bind the user to (required)")
	}
	return cmd
}
