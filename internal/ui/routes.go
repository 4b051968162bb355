package ui

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all console routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	// Login view: only for sessions that are not authenticated.
	r.Group(func(r chi.Router) {
		r.Use(ui.gate.Public)
		r.Get("/login", ui.HandleLogin)
		r.With(ui.LoginRateLimit).Post("/login", ui.HandleLoginPost)
	})

	// Logout works whatever the session state.
	r.Group(func(r chi.Router) {
		r.Use(ui.gate.Session)
		r.Post("/logout", ui.HandleLogout)
		r.Get("/logout", ui.HandleLogout)
	})

	// Protected routes (session required).
	r.Group(func(r chi.Router) {
		r.Use(ui.gate.Protected)

		r.Get("/dashboard", ui.HandleDashboard)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", ui.HandleUserList)
			r.Post("/", ui.HandleUserCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", ui.HandleUserDelete)
				r.Post("/delete", ui.HandleUserDelete)
				r.Post("/status", ui.HandleUserStatus)
			})
		})

		r.Get("/devices", ui.HandleDevices)
		r.Get("/ble-usage", ui.HandleBLEUsage)
		r.Get("/login-history", ui.HandleLoginHistory)
	})

	r.Get("/", ui.HandleRoot)
	r.NotFound(ui.HandleRoot)
}

// Handler returns a router serving only the console routes.
func (ui *UI) Handler() http.Handler {
	r := chi.NewRouter()
	ui.RegisterRoutes(r)
	return r
}
