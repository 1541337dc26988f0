package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/firetv-core/internal/device"
)

// handleRunningApps lists third-party apps with live processes.
//
// GET /devices/{device_id}/apps/running
func (s *Server) handleRunningApps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "device_id")

	apps, err := s.registry.RunningApps(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotConnected) {
			writeJSON(w, http.StatusOK, map[string]any{
				"running_apps": []string{},
				"error":        err.Error(),
			})
			return
		}
		writeRegistryError(w, err)
		return
	}
	if apps == nil {
		apps = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"running_apps": apps})
}

// handleStartApp launches an app through its launcher intent.
//
// GET /devices/{device_id}/apps/{app_id}/start
func (s *Server) handleStartApp(w http.ResponseWriter, r *http.Request) {
	s.handleAppCommand(w, r, s.registry.StartApp)
}

// handleStopApp force-stops an app.
//
// GET /devices/{device_id}/apps/{app_id}/stop
func (s *Server) handleStopApp(w http.ResponseWriter, r *http.Request) {
	s.handleAppCommand(w, r, s.registry.StopApp)
}

func (s *Server) handleAppCommand(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, app string) error) {
	id := chi.URLParam(r, "device_id")
	app := chi.URLParam(r, "app_id")

	if err := op(r.Context(), id, app); err != nil {
		if errors.Is(err, device.ErrNotConnected) {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAppState reports whether an app is foreground, background, or
// stopped. Also served on the deprecated /apps/state/{app_id} path.
//
// GET /devices/{device_id}/apps/{app_id}/state
func (s *Server) handleAppState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "device_id")
	app := chi.URLParam(r, "app_id")

	status, err := s.registry.AppState(r.Context(), id, app)
	if err != nil {
		if errors.Is(err, device.ErrNotConnected) {
			writeJSON(w, http.StatusOK, map[string]any{
				"status": device.AppStopped,
				"error":  err.Error(),
			})
			return
		}
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}
