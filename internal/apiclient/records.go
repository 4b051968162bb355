package apiclient

import (
	"context"

	"github.com/me/dicer/pkg/model"
)

// ListDevices returns registered devices.
func (c *Client) ListDevices(ctx context.Context) ([]model.Device, error) {
	return getList[model.Device](ctx, c, "/devices", "devices")
}

// ListBLEUsage returns BLE beacon usage. Backend versions disagree on the
// key name.
func (c *Client) ListBLEUsage(ctx context.Context) ([]model.BLEUsage, error) {
	return getList[model.BLEUsage](ctx, c, "/ble-usage", "ble_devices", "ble_list", "ble_usage")
}

// ListLoginHistory returns device login records, newest first as sent by
// the backend.
func (c *Client) ListLoginHistory(ctx context.Context) ([]model.LoginRecord, error) {
	return getList[model.LoginRecord](ctx, c, "/login-history", "history")
}
