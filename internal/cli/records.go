package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/dicer/pkg/model"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			devices, err := client.ListDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No devices found.")
				return nil
			}
			printBoundHeader(out, "DEVICE")
			for _, d := range devices {
				printBoundRow(out, d.ID, d.UserName, d.Phone, d.LastLoginAt)
			}
			return nil
		},
	}
}

func newBLECmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ble",
		Short: "List BLE id usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			usage, err := client.ListBLEUsage(cmd.Context())
			if err != nil {
				return fmt.Errorf("list ble usage: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(usage) == 0 {
				fmt.Fprintln(out, "No BLE ids found.")
				return nil
			}
			printBoundHeader(out, "BLE ID")
			for _, b := range usage {
				printBoundRow(out, b.ID, b.UserName, b.Phone, b.LastLoginAt)
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		failedOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show device login history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			records, err := client.ListLoginHistory(cmd.Context())
			if err != nil {
				return fmt.Errorf("list login history: %w", err)
			}

			var shown []model.LoginRecord
			for _, rec := range records {
				if failedOnly && rec.Success {
					continue
				}
				shown = append(shown, rec)
				if limit > 0 && len(shown) == limit {
					break
				}
			}

			out := cmd.OutOrStdout()
			if len(shown) == 0 {
				fmt.Fprintln(out, "No login history.")
				return nil
			}
			fmt.Fprintf(out, "%-16s  %-20s  %-14s  %-16s  %-20s  %s\n", "WHEN", "USER", "PHONE", "DEVICE", "LOCATION", "RESULT")
			fmt.Fprintf(out, "%-16s  %-20s  %-14s  %-16s  %-20s  %s\n", "----", "----", "-----", "------", "--------", "------")
			for _, rec := range shown {
				result := "ok"
				if !rec.Success {
					result = "FAILED"
				}
				fmt.Fprintf(out, "%-16s  %-20s  %-14s  %-16s  %-20s  %s\n",
					ago(rec.LoggedInAt), dash(rec.UserName), dash(rec.Phone), dash(rec.DeviceID), dash(rec.Location), result)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed logins")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many entries (0 for all)")
	return cmd
}

func printBoundHeader(out io.Writer, idLabel string) {
	fmt.Fprintf(out, "%-24s  %-20s  %-14s  %s\n", idLabel, "USER", "PHONE", "LAST LOGIN")
	fmt.Fprintf(out, "%-24s  %-20s  %-14s  %s\n", "--", "----", "-----", "----------")
}

func printBoundRow(out io.Writer, id, user, phone string, lastLogin model.Timestamp) {
	fmt.Fprintf(out, "%-24s  %-20s  %-14s  %s\n", id, dash(user), dash(phone), ago(lastLogin))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func ago(t model.Timestamp) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t.Time)
}
