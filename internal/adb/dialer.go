package adb

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	goadb "github.com/zach-klippenstein/goadb"

	"github.com/nerrad567/firetv-core/internal/infrastructure/config"
)

// onlinePollInterval is how often Dial re-checks device state while
// waiting for a freshly connected device to come online.
const onlinePollInterval = 250 * time.Millisecond

// ServerDialer connects to devices through the local ADB server.
//
// goadb speaks the smart-socket protocol for everything except
// "host:connect", which it does not expose, so ServerDialer issues that
// one request over a raw socket and hands the device off to goadb once
// the server has established the TCP link.
type ServerDialer struct {
	client *goadb.Adb
	addr   string // ADB server host:port for raw requests
}

// NewServerDialer creates a dialer bound to the ADB server in cfg.
func NewServerDialer(cfg config.ADBConfig) (*ServerDialer, error) {
	client, err := goadb.NewWithConfig(goadb.ServerConfig{
		Host: cfg.ServerHost,
		Port: cfg.ServerPort,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}

	return &ServerDialer{
		client: client,
		addr:   net.JoinHostPort(cfg.ServerHost, fmt.Sprintf("%d", cfg.ServerPort)),
	}, nil
}

// HealthCheck verifies the local ADB server responds.
func (d *ServerDialer) HealthCheck(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := d.client.ServerVersion()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrServerUnavailable, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("adb health check: %w", ctx.Err())
	}
}

// Dial asks the ADB server to connect to the device and waits for it to
// report online. The returned Conn runs shell commands via the server.
func (d *ServerDialer) Dial(ctx context.Context, host string) (Conn, error) {
	if err := d.hostRequest(ctx, "host:connect:"+host); err != nil {
		return nil, err
	}

	device := d.client.Device(goadb.DeviceWithSerial(host))

	// The server registers the device asynchronously after the TCP
	// handshake, so poll until it reports online or the deadline hits.
	for {
		state, err := device.State()
		if err == nil && state == goadb.StateOnline {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s did not come online: %w", ErrUnreachable, host, ctx.Err())
		case <-time.After(onlinePollInterval):
		}
	}

	return &serverConn{
		dialer: d,
		device: device,
		host:   host,
	}, nil
}

// hostRequest sends a single smart-socket request to the ADB server.
//
// Wire format: 4 ASCII hex digits of payload length, then the payload;
// the server answers OKAY or FAIL plus a length-prefixed message.
func (d *ServerDialer) hostRequest(ctx context.Context, req string) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%04x%s", len(req), req); err != nil {
		return fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}

	status := make([]byte, 4)
	if _, err := io.ReadFull(conn, status); err != nil {
		return fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}

	switch string(status) {
	case "OKAY":
		// "host:connect" additionally returns a human-readable result
		// ("connected to ..." or "failed to connect to ...") that must
		// be inspected because the status is OKAY either way.
		msg, err := readHexPrefixed(conn)
		if err != nil {
			return nil // some server versions omit the trailing message
		}
		if strings.HasPrefix(msg, "failed") || strings.Contains(msg, "cannot") {
			return fmt.Errorf("%w: %s", ErrUnreachable, msg)
		}
		return nil
	case "FAIL":
		msg, _ := readHexPrefixed(conn)
		return fmt.Errorf("%w: %s", ErrUnreachable, msg)
	default:
		return fmt.Errorf("%w: unexpected status %q", ErrServerUnavailable, status)
	}
}

// readHexPrefixed reads one length-prefixed string from the server.
func readHexPrefixed(r io.Reader) (string, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return "", err
	}

	var n int
	if _, err := fmt.Sscanf(string(lenBuf), "%04x", &n); err != nil {
		return "", err
	}

	msg := make([]byte, n)
	if _, err := io.ReadFull(r, msg); err != nil {
		return "", err
	}

	return string(msg), nil
}

// serverConn is a Conn backed by a goadb device handle.
type serverConn struct {
	dialer *ServerDialer
	device *goadb.Device
	host   string

	mu     sync.Mutex
	closed bool
}

// Shell runs a command on the device through the ADB server.
//
// goadb's RunCommand has no context support, so it runs in a goroutine
// and the result is abandoned if the context expires first.
func (c *serverConn) Shell(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrConnClosed
	}
	c.mu.Unlock()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := c.device.RunCommand(cmd)
		done <- result{out, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("%w: %q: %w", ErrCommandFailed, cmd, res.err)
		}
		return res.out, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %q: %w", ErrCommandFailed, cmd, ctx.Err())
	}
}

// Close tells the ADB server to drop the TCP link to the device.
func (c *serverConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Best effort; the server cleans up dead links on its own.
	if err := c.dialer.hostRequest(ctx, "host:disconnect:"+c.host); err != nil {
		return nil
	}
	return nil
}
