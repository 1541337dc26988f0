package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/firetv-core/internal/device"
)

// deviceEntry is one device in the list response.
type deviceEntry struct {
	Host  string       `json:"host"`
	State device.State `json:"state"`
}

// handleListDevices returns every registered device with its current
// best-effort state. Unreachable devices report disconnected.
//
// GET /devices/list
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := make(map[string]deviceEntry)
	for _, info := range s.registry.List(r.Context()) {
		devices[info.ID] = deviceEntry{Host: info.Host, State: info.State}
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// addDeviceRequest is the body for POST /devices/add.
type addDeviceRequest struct {
	DeviceID string `json:"device_id"`
	Host     string `json:"host"`
}

// handleAddDevice registers a device. Re-adding an existing ID replaces
// its host; registration is idempotent.
//
// POST /devices/add
func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.Add(r.Context(), req.DeviceID, req.Host); err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

// handleConnectDevice (re)establishes the ADB session and reports the
// resulting state. An unreachable device is a routine outcome: 200 with
// state disconnected, never a 5xx.
//
// GET /devices/connect/{device_id}
func (s *Server) handleConnectDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "device_id")

	state, err := s.registry.Connect(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

// handleDeviceState classifies the device's current state.
//
// GET /devices/state/{device_id}
func (s *Server) handleDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "device_id")

	state, err := s.registry.State(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

// handleDeviceAction sends a remote-control action. A device that
// cannot be reached yields success:false with the error in the body;
// that is an operational outcome, not a server fault.
//
// GET /devices/action/{device_id}/{action_id}
func (s *Server) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "device_id")
	actionID := chi.URLParam(r, "action_id")

	err := s.registry.Action(r.Context(), id, actionID)
	if err != nil {
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
