package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/firetv-core/internal/adb"
	"github.com/nerrad567/firetv-core/internal/device"
	"github.com/nerrad567/firetv-core/internal/infrastructure/config"
	"github.com/nerrad567/firetv-core/internal/infrastructure/logging"
)

// ────────────────────────────────────────────────────────────────────────────
// Test fixtures
// ────────────────────────────────────────────────────────────────────────────

// Trimmed dumpsys fragments matching what real Fire OS devices print.
const (
	powerOn      = "  mWakefulness=Awake\n  Display Power: state=ON\n"
	powerOff     = "  mWakefulness=Asleep\n  Display Power: state=OFF\n"
	windowPlayer = "  mCurrentFocus=Window{41f2 u0 com.netflix.ninja/com.netflix.ninja.MainActivity}\n"
	mediaPlay    = "    state=PlaybackState {state=3, position=1542, speed=1.0}\n"
	psDump       = "USER  PID PPID NAME\nu0_a47 3290 1 com.netflix.ninja\nu0_a12 4101 1 com.amazon.tv.launcher\n"
)

// fakeConn answers shell commands from a canned response map.
type fakeConn struct {
	mu        sync.Mutex
	responses map[string]string
	commands  []string
	failAll   bool
}

func (c *fakeConn) Shell(_ context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, cmd)
	if c.failAll {
		return "", fmt.Errorf("shell: connection reset")
	}
	return c.responses[cmd], nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) set(cmd, out string) {
	c.mu.Lock()
	c.responses[cmd] = out
	c.mu.Unlock()
}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// fakeDialer hands out fakeConns per host; hosts in failHosts refuse.
type fakeDialer struct {
	mu        sync.Mutex
	conns     map[string]*fakeConn
	failHosts map[string]bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		conns:     make(map[string]*fakeConn),
		failHosts: make(map[string]bool),
	}
}

func (d *fakeDialer) Dial(_ context.Context, host string) (adb.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failHosts[host] {
		return nil, fmt.Errorf("%w: %s", adb.ErrUnreachable, host)
	}
	conn, ok := d.conns[host]
	if !ok {
		conn = &fakeConn{responses: make(map[string]string)}
		d.conns[host] = conn
	}
	return conn, nil
}

func (d *fakeDialer) conn(host string) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn, ok := d.conns[host]
	if !ok {
		conn = &fakeConn{responses: make(map[string]string)}
		d.conns[host] = conn
	}
	return conn
}

// setupTestDB creates an in-memory SQLite database with the devices schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			id         TEXT PRIMARY KEY,
			host       TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testServer creates a Server with a real device registry backed by
// in-memory SQLite and a fake ADB dialer.
func testServer(t *testing.T) (*Server, *device.Registry, *fakeDialer) {
	t.Helper()

	repo := device.NewSQLiteRepository(setupTestDB(t))
	dialer := newFakeDialer()
	registry := device.NewRegistry(repo, dialer, device.Options{
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
		Classifier: device.ClassifierConfig{
			LauncherPackages:    []string{"com.amazon.tv.launcher"},
			ScreensaverPackages: []string{"com.amazon.firetv.screensaver"},
		},
	})
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   log,
		Registry: registry,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv, registry, dialer
}

// doRequest performs a request against the server's router.
func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, stringsReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

// ────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ────────────────────────────────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without registry should fail")
	}
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}
