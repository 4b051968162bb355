package ui

import (
	"net/http"

	"github.com/me/dicer/pkg/model"
)

// HandleDevices renders registered devices.
func (ui *UI) HandleDevices(w http.ResponseWriter, r *http.Request) {
	opts := ui.parseListOptions(r)

	devices, err := ui.client.ListDevices(r.Context())
	if err != nil {
		ui.fail(w, r, "Failed to load devices", err)
		return
	}

	var filtered []model.Device
	for _, d := range devices {
		if matches(opts.Query, d.ID, d.UserID, d.UserName, d.Phone) {
			filtered = append(filtered, d)
		}
	}
	page, pg := model.Page(filtered, opts)

	data := map[string]any{
		"Title":      "Devices - DICER",
		"Devices":    page,
		"Pagination": ui.buildPagination(pg, opts.Query),
	}
	ui.render(w, r, http.StatusOK, "devices", data)
}

// HandleBLEUsage renders BLE beacon usage.
func (ui *UI) HandleBLEUsage(w http.ResponseWriter, r *http.Request) {
	opts := ui.parseListOptions(r)

	usage, err := ui.client.ListBLEUsage(r.Context())
	if err != nil {
		ui.fail(w, r, "Failed to load BLE usage", err)
		return
	}

	var filtered []model.BLEUsage
	for _, b := range usage {
		if matches(opts.Query, b.ID, b.UserID, b.UserName, b.Phone) {
			filtered = append(filtered, b)
		}
	}
	page, pg := model.Page(filtered, opts)

	data := map[string]any{
		"Title":      "BLE Usage - DICER",
		"Usage":      page,
		"Pagination": ui.buildPagination(pg, opts.Query),
	}
	ui.render(w, r, http.StatusOK, "ble", data)
}

// HandleLoginHistory renders device login records.
func (ui *UI) HandleLoginHistory(w http.ResponseWriter, r *http.Request) {
	opts := ui.parseListOptions(r)

	history, err := ui.client.ListLoginHistory(r.Context())
	if err != nil {
		ui.fail(w, r, "Failed to load login history", err)
		return
	}

	var filtered []model.LoginRecord
	failed := 0
	for _, rec := range history {
		if !rec.Success {
			failed++
		}
		if matches(opts.Query, rec.UserID, rec.UserName, rec.Phone, rec.DeviceID, rec.Location) {
			filtered = append(filtered, rec)
		}
	}
	page, pg := model.Page(filtered, opts)

	data := map[string]any{
		"Title":       "Login History - DICER",
		"History":     page,
		"Pagination":  ui.buildPagination(pg, opts.Query),
		"FailedCount": failed,
	}
	ui.render(w, r, http.StatusOK, "history", data)
}
