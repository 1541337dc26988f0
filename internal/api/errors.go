package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/firetv-core/internal/device"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeRegistryError maps device registry errors onto HTTP responses.
//
// Connection failures (ErrNotConnected) are deliberately NOT mapped here:
// they are routine operational states, and each handler reports them in
// its own 200 response shape.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrInvalidDeviceID),
		errors.Is(err, device.ErrInvalidHost),
		errors.Is(err, device.ErrInvalidAppID):
		writeBadRequest(w, err.Error())
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, device.ErrUnknownAction):
		writeNotFound(w, err.Error())
	case errors.Is(err, device.ErrDeviceBusy):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
