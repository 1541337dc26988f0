package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/firetv-core/internal/adb"
)

// ────────────────────────────────────────────────────────────────────────────
// Fakes
// ────────────────────────────────────────────────────────────────────────────

// fakeConn answers shell commands from a canned response map and records
// everything it is asked to run.
type fakeConn struct {
	mu        sync.Mutex
	responses map[string]string
	commands  []string
	failAll   bool
	closed    bool
}

func (c *fakeConn) Shell(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands = append(c.commands, cmd)
	if c.failAll {
		return "", fmt.Errorf("shell: connection reset")
	}
	return c.responses[cmd], nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// fakeDialer hands out fakeConns per host and counts dials.
type fakeDialer struct {
	mu        sync.Mutex
	conns     map[string]*fakeConn
	failHosts map[string]bool
	dials     int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		conns:     make(map[string]*fakeConn),
		failHosts: make(map[string]bool),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, host string) (adb.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.failHosts[host] {
		return nil, fmt.Errorf("%w: %s", adb.ErrUnreachable, host)
	}

	conn, ok := d.conns[host]
	if !ok {
		conn = &fakeConn{responses: map[string]string{}}
		d.conns[host] = conn
	}
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu      sync.Mutex
	devices map[string]string // id -> host
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{devices: make(map[string]string)}
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	host, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return &Device{ID: id, Host: host}, nil
}

func (r *fakeRepo) List(_ context.Context) ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices := make([]Device, 0, len(r.devices))
	for id, host := range r.devices {
		devices = append(devices, Device{ID: id, Host: host})
	}
	return devices, nil
}

func (r *fakeRepo) Upsert(_ context.Context, id, host string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[id] = host
	return nil
}

// recordingSink captures state transitions.
type recordingSink struct {
	mu          sync.Mutex
	transitions []string
}

func (s *recordingSink) OnStateChange(deviceID string, previous, current State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, fmt.Sprintf("%s:%s->%s", deviceID, previous, current))
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transitions...)
}

// ────────────────────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────────────────────

const testHost = "192.168.1.50:5555"

func testRegistry(t *testing.T) (*Registry, *fakeDialer) {
	t.Helper()

	dialer := newFakeDialer()
	r := NewRegistry(newFakeRepo(), dialer, Options{
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
		Classifier: ClassifierConfig{
			LauncherPackages:    []string{"com.amazon.tv.launcher"},
			ScreensaverPackages: []string{"com.amazon.firetv.screensaver"},
		},
	})
	return r, dialer
}

// primePlaying configures the device's probe responses to classify as play.
func primePlaying(conn *fakeConn) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.responses["dumpsys power"] = powerScreenOn
	conn.responses["dumpsys window"] = windowNetflix
	conn.responses["dumpsys media_session"] = mediaPlaying
}

func primeIdle(conn *fakeConn) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.responses["dumpsys power"] = powerScreenOn
	conn.responses["dumpsys window"] = windowLauncher
	conn.responses["dumpsys media_session"] = mediaNone
}

func primeOff(conn *fakeConn) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.responses["dumpsys power"] = powerScreenOff
	conn.responses["dumpsys window"] = ""
	conn.responses["dumpsys media_session"] = ""
}

func deviceConn(d *fakeDialer, host string) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn, ok := d.conns[host]
	if !ok {
		conn = &fakeConn{responses: map[string]string{}}
		d.conns[host] = conn
	}
	return conn
}

// ────────────────────────────────────────────────────────────────────────────
// Registration
// ────────────────────────────────────────────────────────────────────────────

func TestRegistry_Add_InvalidID(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	err := r.Add(ctx, "living room", testHost)
	if !errors.Is(err, ErrInvalidDeviceID) {
		t.Fatalf("Add() error = %v, want ErrInvalidDeviceID", err)
	}

	if got := r.List(ctx); len(got) != 0 {
		t.Errorf("registry changed by rejected Add: %v", got)
	}
}

func TestRegistry_Add_InvalidHost(t *testing.T) {
	r, _ := testRegistry(t)

	tests := []string{"192.168.1.50", "192.168.1.50:port", ":5555", ""}
	for _, host := range tests {
		if err := r.Add(context.Background(), "tv", host); !errors.Is(err, ErrInvalidHost) {
			t.Errorf("Add(host=%q) error = %v, want ErrInvalidHost", host, err)
		}
	}
}

func TestRegistry_Add_Idempotent(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.Add(ctx, "living-room", "192.168.1.99:5555"); err != nil {
		t.Fatalf("re-Add() error = %v", err)
	}

	infos := r.List(ctx)
	if len(infos) != 1 {
		t.Fatalf("List() returned %d devices, want 1", len(infos))
	}
	if infos[0].Host != "192.168.1.99:5555" {
		t.Errorf("Host = %q, want replaced host", infos[0].Host)
	}
}

func TestRegistry_RefreshCache_LoadsPersisted(t *testing.T) {
	repo := newFakeRepo()
	repo.devices["bedroom"] = testHost

	r := NewRegistry(repo, newFakeDialer(), Options{})
	if err := r.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	if _, err := r.State(context.Background(), "bedroom"); errors.Is(err, ErrDeviceNotFound) {
		t.Error("persisted device not attached to registry")
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Connect / State
// ────────────────────────────────────────────────────────────────────────────

func TestRegistry_Connect_Unreachable(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()
	dialer.failHosts[testHost] = true

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	state, err := r.Connect(ctx, "living-room")
	if err != nil {
		t.Fatalf("Connect() error = %v, unreachable must be routine", err)
	}
	if state != StateDisconnected {
		t.Errorf("Connect() state = %q, want disconnected", state)
	}
}

func TestRegistry_Connect_UnknownDevice(t *testing.T) {
	r, _ := testRegistry(t)

	_, err := r.Connect(context.Background(), "ghost")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("Connect() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_State_ClassifiesPlaying(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	primePlaying(deviceConn(dialer, testHost))

	state, err := r.State(ctx, "living-room")
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state != StatePlay {
		t.Errorf("State() = %q, want play", state)
	}
}

func TestRegistry_State_ProbeFailureTearsDown(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)
	primePlaying(conn)

	if _, err := r.State(ctx, "living-room"); err != nil {
		t.Fatalf("first State() error = %v", err)
	}
	before := dialer.dialCount()

	conn.mu.Lock()
	conn.failAll = true
	conn.mu.Unlock()

	state, err := r.State(ctx, "living-room")
	if err != nil {
		t.Fatalf("State() after probe failure error = %v, want routine disconnected", err)
	}
	if state != StateDisconnected {
		t.Errorf("State() = %q, want disconnected", state)
	}
	if !conn.closed {
		t.Error("failed session was not torn down")
	}

	// Recovery: next call must redial rather than reuse the dead handle.
	conn.mu.Lock()
	conn.failAll = false
	conn.closed = false
	conn.mu.Unlock()

	if _, err := r.State(ctx, "living-room"); err != nil {
		t.Fatalf("State() after recovery error = %v", err)
	}
	if dialer.dialCount() != before+1 {
		t.Errorf("dial count = %d, want %d (one redial)", dialer.dialCount(), before+1)
	}
}

func TestRegistry_State_ReusesSession(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	primeIdle(deviceConn(dialer, testHost))

	for i := 0; i < 3; i++ {
		if _, err := r.State(ctx, "living-room"); err != nil {
			t.Fatalf("State() #%d error = %v", i, err)
		}
	}

	if dialer.dialCount() != 1 {
		t.Errorf("dial count = %d, want 1 (session reuse)", dialer.dialCount())
	}
}

func TestRegistry_List_MixedReachability(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.Add(ctx, "bedroom", "192.168.1.60:5555"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	primeIdle(deviceConn(dialer, testHost))
	dialer.failHosts["192.168.1.60:5555"] = true

	states := make(map[string]State)
	for _, info := range r.List(ctx) {
		states[info.ID] = info.State
	}

	if states["living-room"] != StateIdle {
		t.Errorf("living-room state = %q, want idle", states["living-room"])
	}
	if states["bedroom"] != StateDisconnected {
		t.Errorf("bedroom state = %q, want disconnected", states["bedroom"])
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Actions
// ────────────────────────────────────────────────────────────────────────────

func TestRegistry_Action_VolumeUp_SendsExactlyOneKey(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)

	if err := r.Action(ctx, "living-room", "volume_up"); err != nil {
		t.Fatalf("Action() error = %v", err)
	}

	var keyEvents []string
	for _, cmd := range conn.sent() {
		if strings.HasPrefix(cmd, "input keyevent") {
			keyEvents = append(keyEvents, cmd)
		}
	}
	if len(keyEvents) != 1 || keyEvents[0] != "input keyevent 24" {
		t.Errorf("key events = %v, want exactly [input keyevent 24]", keyEvents)
	}
}

func TestRegistry_Action_Unknown(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	err := r.Action(ctx, "living-room", "self_destruct")
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("Action() error = %v, want ErrUnknownAction", err)
	}
}

func TestRegistry_Action_Unreachable(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()
	dialer.failHosts[testHost] = true

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	err := r.Action(ctx, "living-room", "home")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Action() error = %v, want ErrNotConnected", err)
	}
}

func TestRegistry_Action_TurnOn_SkipsWhenAlreadyOn(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)
	primeIdle(conn) // screen on

	if err := r.Action(ctx, "living-room", "turn_on"); err != nil {
		t.Fatalf("Action() error = %v", err)
	}

	for _, cmd := range conn.sent() {
		if strings.HasPrefix(cmd, "input keyevent") {
			t.Errorf("turn_on on a running device sent %q", cmd)
		}
	}
}

func TestRegistry_Action_TurnOn_SendsPowerWhenOff(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)
	primeOff(conn)

	if err := r.Action(ctx, "living-room", "turn_on"); err != nil {
		t.Fatalf("Action() error = %v", err)
	}

	var keyEvents []string
	for _, cmd := range conn.sent() {
		if strings.HasPrefix(cmd, "input keyevent") {
			keyEvents = append(keyEvents, cmd)
		}
	}
	want := []string{"input keyevent 26", "input keyevent 3"}
	if len(keyEvents) != len(want) {
		t.Fatalf("key events = %v, want %v", keyEvents, want)
	}
	for i := range want {
		if keyEvents[i] != want[i] {
			t.Errorf("key event[%d] = %q, want %q", i, keyEvents[i], want[i])
		}
	}
}

func TestRegistry_Action_TurnOff_SkipsWhenOff(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)
	primeOff(conn)

	if err := r.Action(ctx, "living-room", "turn_off"); err != nil {
		t.Fatalf("Action() error = %v", err)
	}

	for _, cmd := range conn.sent() {
		if strings.HasPrefix(cmd, "input keyevent") {
			t.Errorf("turn_off on an off device sent %q", cmd)
		}
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Concurrency
// ────────────────────────────────────────────────────────────────────────────

func TestRegistry_Busy_SecondRequestTimesOut(t *testing.T) {
	dialer := newFakeDialer()
	r := NewRegistry(newFakeRepo(), dialer, Options{
		ConnectTimeout: time.Second,
		CommandTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Hold the session slot the way an in-flight command would.
	r.mu.RLock()
	e := r.entries["living-room"]
	r.mu.RUnlock()
	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	_, err := r.State(ctx, "living-room")
	if !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("State() error = %v, want ErrDeviceBusy", err)
	}
}

func TestRegistry_Busy_OtherDevicesUnaffected(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.Add(ctx, "bedroom", "192.168.1.60:5555"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	primeIdle(deviceConn(dialer, "192.168.1.60:5555"))

	// Jam living-room's session.
	r.mu.RLock()
	e := r.entries["living-room"]
	r.mu.RUnlock()
	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	state, err := r.State(ctx, "bedroom")
	if err != nil {
		t.Fatalf("State(bedroom) error = %v", err)
	}
	if state != StateIdle {
		t.Errorf("State(bedroom) = %q, want idle", state)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// State sinks
// ────────────────────────────────────────────────────────────────────────────

func TestRegistry_Sinks_NotifiedOnTransition(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()
	sink := &recordingSink{}
	r.AddSink(sink)

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)
	primePlaying(conn)

	if _, err := r.State(ctx, "living-room"); err != nil {
		t.Fatalf("State() error = %v", err)
	}
	// Same state again must not re-notify.
	if _, err := r.State(ctx, "living-room"); err != nil {
		t.Fatalf("State() error = %v", err)
	}

	primeIdle(conn)
	if _, err := r.State(ctx, "living-room"); err != nil {
		t.Fatalf("State() error = %v", err)
	}

	want := []string{
		"living-room:disconnected->play",
		"living-room:play->idle",
	}
	got := sink.all()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Apps
// ────────────────────────────────────────────────────────────────────────────

const psOutput = `USER      PID   PPID  NAME
system    1892  1     system_server
u0_a47    3290  1     com.netflix.ninja
u0_a12    4101  1     com.amazon.tv.launcher
`

func TestRegistry_RunningApps(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)
	conn.mu.Lock()
	conn.responses["ps"] = psOutput
	conn.mu.Unlock()

	apps, err := r.RunningApps(ctx, "living-room")
	if err != nil {
		t.Fatalf("RunningApps() error = %v", err)
	}

	want := []string{"com.netflix.ninja", "com.amazon.tv.launcher"}
	if len(apps) != len(want) {
		t.Fatalf("RunningApps() = %v, want %v", apps, want)
	}
}

func TestRegistry_AppState(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)
	conn.mu.Lock()
	conn.responses["ps"] = psOutput
	conn.responses["dumpsys window"] = windowNetflix
	conn.mu.Unlock()

	tests := []struct {
		app  string
		want AppStatus
	}{
		{"com.netflix.ninja", AppForeground},
		{"com.amazon.tv.launcher", AppBackground},
		{"org.xbmc.kodi", AppStopped},
	}

	for _, tt := range tests {
		got, err := r.AppState(ctx, "living-room", tt.app)
		if err != nil {
			t.Fatalf("AppState(%q) error = %v", tt.app, err)
		}
		if got != tt.want {
			t.Errorf("AppState(%q) = %q, want %q", tt.app, got, tt.want)
		}
	}
}

func TestRegistry_AppState_InvalidAppID(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	_, err := r.AppState(ctx, "living-room", "com.app;reboot")
	if !errors.Is(err, ErrInvalidAppID) {
		t.Fatalf("AppState() error = %v, want ErrInvalidAppID", err)
	}
}

func TestRegistry_StartStopApp(t *testing.T) {
	r, dialer := testRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, "living-room", testHost); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	conn := deviceConn(dialer, testHost)

	if err := r.StartApp(ctx, "living-room", "com.netflix.ninja"); err != nil {
		t.Fatalf("StartApp() error = %v", err)
	}
	if err := r.StopApp(ctx, "living-room", "com.netflix.ninja"); err != nil {
		t.Fatalf("StopApp() error = %v", err)
	}

	sent := conn.sent()
	var haveStart, haveStop bool
	for _, cmd := range sent {
		if cmd == "monkey -p com.netflix.ninja -c android.intent.category.LAUNCHER 1" {
			haveStart = true
		}
		if cmd == "am force-stop com.netflix.ninja" {
			haveStop = true
		}
	}
	if !haveStart || !haveStop {
		t.Errorf("commands = %v, missing start/stop", sent)
	}
}
