package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// The /devices route shapes mirror what Home Assistant's Fire TV
// integration calls, so they sit at the root rather than under a
// versioned prefix.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check
	r.Get("/health", s.handleHealth)

	// Device endpoints
	r.Route("/devices", func(r chi.Router) {
		r.Get("/list", s.handleListDevices)
		r.Post("/add", s.handleAddDevice)
		r.Get("/connect/{device_id}", s.handleConnectDevice)
		r.Get("/state/{device_id}", s.handleDeviceState)
		r.Get("/action/{device_id}/{action_id}", s.handleDeviceAction)

		r.Route("/{device_id}/apps", func(r chi.Router) {
			r.Get("/running", s.handleRunningApps)
			r.Get("/{app_id}/start", s.handleStartApp)
			r.Get("/{app_id}/stop", s.handleStopApp)
			r.Get("/{app_id}/state", s.handleAppState)

			// Deprecated: older clients used /apps/state/{app_id}
			r.Get("/state/{app_id}", s.handleAppState)
		})
	})

	// WebSocket
	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
