package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDeviceID is returned when a device ID fails validation.
	ErrInvalidDeviceID = errors.New("device: invalid device id")

	// ErrInvalidHost is returned when a host endpoint fails validation.
	ErrInvalidHost = errors.New("device: invalid host")

	// ErrInvalidAppID is returned when an app package name fails validation.
	ErrInvalidAppID = errors.New("device: invalid app id")

	// ErrUnknownAction is returned when an action ID is not in the action table.
	ErrUnknownAction = errors.New("device: unknown action")

	// ErrDeviceBusy is returned when another command holds the device
	// session for longer than the command timeout.
	ErrDeviceBusy = errors.New("device: busy")

	// ErrNotConnected is returned when a command requires a live ADB
	// session and the device is unreachable. This is routine, not a
	// server fault; callers report it as state, not as failure.
	ErrNotConnected = errors.New("device: not connected")
)
