package adb

import "errors"

// Sentinel errors for ADB operations.
// Use errors.Is() to check error types.
var (
	// ErrServerUnavailable indicates the local ADB server cannot be reached.
	ErrServerUnavailable = errors.New("adb: server unavailable")

	// ErrUnreachable indicates the device did not accept a connection or
	// did not reach the online state in time.
	ErrUnreachable = errors.New("adb: device unreachable")

	// ErrCommandFailed indicates a shell command could not be executed.
	ErrCommandFailed = errors.New("adb: command failed")

	// ErrConnClosed indicates use of a connection after Close.
	ErrConnClosed = errors.New("adb: connection closed")
)
