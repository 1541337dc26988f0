package device

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

var (
	// deviceIDPattern matches identifiers safe for topics, URLs and filenames.
	deviceIDPattern = regexp.MustCompile(`^[-\w]+$`)

	// appIDPattern matches Android package names (letters and dots,
	// starting with a letter).
	appIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z.]+$`)
)

// ValidateDeviceID checks that an identifier contains only word
// characters and hyphens.
func ValidateDeviceID(id string) error {
	if !deviceIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}
	return nil
}

// ValidateHost checks that a host is an "addr:port" endpoint with a
// numeric port in range.
func ValidateHost(host string) error {
	addr, portStr, err := net.SplitHostPort(host)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	if addr == "" {
		return fmt.Errorf("%w: %q: empty address", ErrInvalidHost, host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q: bad port", ErrInvalidHost, host)
	}
	return nil
}

// ValidateAppID checks that an app identifier looks like an Android
// package name.
func ValidateAppID(app string) error {
	if !appIDPattern.MatchString(app) {
		return fmt.Errorf("%w: %q", ErrInvalidAppID, app)
	}
	return nil
}
