package adb

import "context"

// Conn is an established shell session to a single device.
//
// Implementations must be safe for sequential use; callers serialize
// access per device, so a Conn never sees concurrent Shell calls.
type Conn interface {
	// Shell runs a shell command on the device and returns its combined
	// output. The context bounds the whole round trip.
	Shell(ctx context.Context, cmd string) (string, error)

	// Close releases the session and tells the ADB server to drop the
	// TCP connection to the device.
	Close() error
}

// Dialer establishes connections to devices over TCP ADB.
//
// host is a "host:port" endpoint (Fire TV devices listen on 5555).
// Implementations return ErrUnreachable when the device cannot be
// reached or does not come online within the context deadline.
type Dialer interface {
	Dial(ctx context.Context, host string) (Conn, error)
}
