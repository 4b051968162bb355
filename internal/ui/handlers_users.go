package ui

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/dicer/pkg/model"
)

// HandleUserList renders the users table.
func (ui *UI) HandleUserList(w http.ResponseWriter, r *http.Request) {
	opts := ui.parseListOptions(r)

	users, err := ui.client.ListUsers(r.Context())
	if err != nil {
		ui.fail(w, r, "Failed to load users", err)
		return
	}

	var filtered []model.User
	for _, u := range users {
		if matches(opts.Query, u.ID, u.Name, u.Phone, strings.Join(u.DeviceIDs, " ")) {
			filtered = append(filtered, u)
		}
	}
	page, pg := model.Page(filtered, opts)

	active := 0
	for _, u := range users {
		if u.IsActive() {
			active++
		}
	}

	data := map[string]any{
		"Title":       "Users - DICER",
		"Users":       page,
		"Pagination":  ui.buildPagination(pg, opts.Query),
		"ActiveCount": active,
		"TotalCount":  len(users),
	}
	ui.render(w, r, http.StatusOK, "users/list", data)
}

// HandleUserCreate signs up a user and shows the generated password once.
func (ui *UI) HandleUserCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ui.redirectWith(w, r, "/users", "error", "Invalid request")
		return
	}

	nu := model.NewUser{
		Name:  strings.TrimSpace(r.FormValue("name")),
		Phone: strings.TrimSpace(r.FormValue("phone")),
	}
	u, err := ui.client.CreateUser(r.Context(), nu)
	if err != nil {
		ui.failAction(w, r, "/users", "Failed to create user", err)
		return
	}

	ui.logger.Info("user created", "user_id", u.ID, "name", u.Name)
	data := map[string]any{
		"Title": "User created - DICER",
		"User":  u,
		"OK":    "User created successfully",
	}
	ui.render(w, r, http.StatusCreated, "users/created", data)
}

// HandleUserDelete removes a user. Used both by the htmx DELETE and the
// plain form POST.
func (ui *UI) HandleUserDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := ui.client.DeleteUser(r.Context(), id); err != nil {
		ui.failAction(w, r, "/users", "Failed to delete user", err)
		return
	}

	ui.logger.Info("user deleted", "user_id", id)
	ui.redirectWith(w, r, "/users", "ok", "User deleted successfully")
}

// HandleUserStatus activates or deactivates a user. The form posts the
// target status; activation needs a device id.
func (ui *UI) HandleUserStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		ui.redirectWith(w, r, "/users", "error", "Invalid request")
		return
	}

	status, ok := model.ParseUserStatus(r.FormValue("status"))
	if !ok {
		ui.redirectWith(w, r, "/users", "error", "Unknown status")
		return
	}
	change := model.StatusChange{
		Status:   status,
		DeviceID: strings.TrimSpace(r.FormValue("device_id")),
	}

	if err := ui.client.SetUserStatus(r.Context(), id, change); err != nil {
		ui.failAction(w, r, "/users", "Failed to update user status", err)
		return
	}

	ui.logger.Info("user status changed", "user_id", id, "status", status, "device_id", change.DeviceID)
	ui.redirectWith(w, r, "/users", "ok", "User status updated to "+string(status))
}
