package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/me/dicer/pkg/model"
)

type healthResponse struct {
	Status              string `json:"status"`
	Version             string `json:"version"`
	GoVersion           string `json:"go_version"`
	Uptime              string `json:"uptime"`
	SessionBackend      string `json:"session_backend"`
	Store               string `json:"store"`
	ServiceAvailability string `json:"service_availability"`
	Interceptors        int    `json:"interceptors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	resp := healthResponse{
		Status:              "healthy",
		Version:             Version,
		GoVersion:           runtime.Version(),
		Uptime:              time.Since(s.startTime).Round(time.Second).String(),
		SessionBackend:      s.config.SessionBackend,
		Store:               "none",
		ServiceAvailability: s.flow.Availability().String(),
		Interceptors:        s.client.Interceptors(),
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, _, err := s.store.GetValue(ctx, "_health", "_ping"); err != nil {
			resp.Status = "degraded"
			resp.Store = "unavailable"
			respondError(w, reqID, http.StatusServiceUnavailable, resp, &model.APIError{
				Code:    model.ErrUnavailable,
				Message: "session store unavailable",
			})
			return
		}
		resp.Store = "ok"
	}

	respondOK(w, reqID, resp)
}
