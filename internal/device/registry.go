package device

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/firetv-core/internal/adb"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StateSink receives state transitions observed by the registry.
// Sinks must not block; slow consumers should buffer internally.
type StateSink interface {
	OnStateChange(deviceID string, previous, current State)
}

// Options configures a Registry.
type Options struct {
	// ConnectTimeout bounds a single dial attempt to a device.
	ConnectTimeout time.Duration

	// CommandTimeout bounds a shell round trip. It also bounds how long
	// a request waits for a busy device session.
	CommandTimeout time.Duration

	// Classifier configures idle detection (launcher/screensaver packages).
	Classifier ClassifierConfig
}

// entry is the runtime side of a registered device: the session
// semaphore, the connection handle, and the last observed state.
//
// The conn, connHost and lastState fields are guarded by the sem
// channel: only the goroutine holding the slot may touch them. The host
// field is guarded by hostMu because Add updates it without the slot.
type entry struct {
	id string

	hostMu sync.RWMutex
	host   string

	sem       chan struct{} // capacity 1, the per-device session lock
	conn      adb.Conn
	connHost  string // host the conn was dialed to, for staleness checks
	lastState State
}

func (e *entry) getHost() string {
	e.hostMu.RLock()
	defer e.hostMu.RUnlock()
	return e.host
}

func (e *entry) setHost(host string) {
	e.hostMu.Lock()
	e.host = host
	e.hostMu.Unlock()
}

// Registry owns all registered devices, their ADB sessions, and the
// state classification policy.
//
// Concurrency: at most one in-flight command per device. Each entry has
// a capacity-1 semaphore; a second concurrent request for the same
// device waits up to the command timeout, then fails with ErrDeviceBusy.
// Requests for different devices proceed independently.
//
// All public methods are thread-safe.
type Registry struct {
	repo       Repository
	dialer     adb.Dialer
	classifier *Classifier
	opts       Options

	entries map[string]*entry
	mu      sync.RWMutex

	sinks   []StateSink
	sinksMu sync.RWMutex

	logger Logger
}

// NewRegistry creates a device registry. Devices already persisted in
// the repository are attached on the first RefreshCache call.
func NewRegistry(repo Repository, dialer adb.Dialer, opts Options) *Registry {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 10 * time.Second
	}

	return &Registry{
		repo:       repo,
		dialer:     dialer,
		classifier: NewClassifier(opts.Classifier),
		opts:       opts,
		entries:    make(map[string]*entry),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// AddSink registers a state transition observer. Sinks added after
// startup only see transitions observed from that point on.
func (r *Registry) AddSink(sink StateSink) {
	r.sinksMu.Lock()
	r.sinks = append(r.sinks, sink)
	r.sinksMu.Unlock()
}

// RefreshCache loads persisted devices into the registry.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range devices {
		if existing, ok := r.entries[d.ID]; ok {
			existing.setHost(d.Host)
			continue
		}
		r.entries[d.ID] = newEntry(d.ID, d.Host)
	}

	r.logger.Info("device registry loaded", "count", len(devices))
	return nil
}

func newEntry(id, host string) *entry {
	return &entry{
		id:        id,
		host:      host,
		sem:       make(chan struct{}, 1),
		lastState: StateDisconnected,
	}
}

// Add registers a device or replaces the host of an existing one.
// It validates, persists, and updates the runtime entry; it does not
// eagerly connect. Re-adding an existing ID is idempotent.
func (r *Registry) Add(ctx context.Context, id, host string) error {
	if err := ValidateDeviceID(id); err != nil {
		return err
	}
	if err := ValidateHost(host); err != nil {
		return err
	}

	if err := r.repo.Upsert(ctx, id, host); err != nil {
		return err
	}

	r.mu.Lock()
	if existing, ok := r.entries[id]; ok {
		// A stale conn to the old host is detected and redialed by the
		// next command; closing it here would race the current holder.
		existing.setHost(host)
	} else {
		r.entries[id] = newEntry(id, host)
	}
	r.mu.Unlock()

	r.logger.Info("device registered", "id", id, "host", host)
	return nil
}

// DeviceInfo is a snapshot of one device for listings.
type DeviceInfo struct {
	ID    string
	Host  string
	State State
}

// List returns every registered device with its best-effort current
// state. Unreachable devices report disconnected; List never fails
// because one device is down.
func (r *Registry) List(ctx context.Context) []DeviceInfo {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(ids))
	for _, id := range ids {
		state, err := r.State(ctx, id)
		if err != nil {
			state = StateDisconnected
		}

		r.mu.RLock()
		e, ok := r.entries[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}

		infos = append(infos, DeviceInfo{ID: id, Host: e.getHost(), State: state})
	}

	return infos
}

// Connect (re)establishes the ADB session and returns the resulting
// state. Dial failure is routine and yields disconnected, not an error;
// only unknown devices and busy sessions fail.
func (r *Registry) Connect(ctx context.Context, id string) (State, error) {
	e, release, err := r.acquire(ctx, id)
	if err != nil {
		return StateDisconnected, err
	}
	defer release()

	// Force a fresh dial even if a conn exists; Connect is the explicit
	// "re-establish now" operation.
	r.teardownLocked(e)

	if err := r.ensureConnLocked(ctx, e); err != nil {
		return r.observeLocked(e, StateDisconnected), nil
	}

	return r.classifyLocked(ctx, e), nil
}

// State classifies the device via the live session, dialing only if no
// handle exists. Probe failure tears the session down and reports
// disconnected.
func (r *Registry) State(ctx context.Context, id string) (State, error) {
	e, release, err := r.acquire(ctx, id)
	if err != nil {
		return StateDisconnected, err
	}
	defer release()

	if err := r.ensureConnLocked(ctx, e); err != nil {
		return r.observeLocked(e, StateDisconnected), nil
	}

	return r.classifyLocked(ctx, e), nil
}

// Action sends the key events mapped to actionID. Unknown actions and
// devices fail fast; an unreachable device fails with ErrNotConnected.
func (r *Registry) Action(ctx context.Context, id, actionID string) error {
	act, ok := actionTable[actionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
	}

	e, release, err := r.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := r.ensureConnLocked(ctx, e); err != nil {
		return err
	}

	if act.condition != always {
		state := r.classifyLocked(ctx, e)
		if state == StateDisconnected {
			return ErrNotConnected
		}
		if act.condition == onlyWhenOff && state != StateOff {
			return nil // already on
		}
		if act.condition == onlyWhenOn && state == StateOff {
			return nil // already off
		}
	}

	for _, key := range act.keys {
		if err := r.shellLocked(ctx, e, "input keyevent "+strconv.Itoa(key)); err != nil {
			return err
		}
	}

	r.logger.Debug("action sent", "id", id, "action", actionID)
	return nil
}

// RunningApps returns third-party app packages with live processes.
func (r *Registry) RunningApps(ctx context.Context, id string) ([]string, error) {
	e, release, err := r.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.ensureConnLocked(ctx, e); err != nil {
		return nil, err
	}

	out, err := r.shellOutputLocked(ctx, e, cmdListProcesses)
	if err != nil {
		return nil, err
	}

	return parseRunningApps(out), nil
}

// AppState reports whether the app is foreground, background, or stopped.
func (r *Registry) AppState(ctx context.Context, id, app string) (AppStatus, error) {
	if err := ValidateAppID(app); err != nil {
		return "", err
	}

	e, release, err := r.acquire(ctx, id)
	if err != nil {
		return "", err
	}
	defer release()

	if err := r.ensureConnLocked(ctx, e); err != nil {
		return "", err
	}

	window, err := r.shellOutputLocked(ctx, e, cmdWindowDump)
	if err != nil {
		return "", err
	}
	if focusedPackage(window) == app {
		return AppForeground, nil
	}

	ps, err := r.shellOutputLocked(ctx, e, cmdListProcesses)
	if err != nil {
		return "", err
	}
	if containsApp(parseRunningApps(ps), app) {
		return AppBackground, nil
	}

	return AppStopped, nil
}

// StartApp launches the app through its launcher intent.
func (r *Registry) StartApp(ctx context.Context, id, app string) error {
	if err := ValidateAppID(app); err != nil {
		return err
	}
	return r.runAppCommand(ctx, id, startAppCommand(app))
}

// StopApp force-stops the app.
func (r *Registry) StopApp(ctx context.Context, id, app string) error {
	if err := ValidateAppID(app); err != nil {
		return err
	}
	return r.runAppCommand(ctx, id, stopAppCommand(app))
}

func (r *Registry) runAppCommand(ctx context.Context, id, cmd string) error {
	e, release, err := r.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := r.ensureConnLocked(ctx, e); err != nil {
		return err
	}

	return r.shellLocked(ctx, e, cmd)
}

// Close tears down every device session. Called on shutdown.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		select {
		case e.sem <- struct{}{}:
			r.teardownLocked(e)
			<-e.sem
		default:
			// Session busy; its holder owns cleanup.
		}
	}

	return nil
}

// ────────────────────────────────────────────────────────────────────────────
// Session internals. Methods suffixed Locked require the caller to hold
// the entry's semaphore slot.
// ────────────────────────────────────────────────────────────────────────────

// acquire takes the device's session slot, waiting up to the command
// timeout. Returns ErrDeviceNotFound or ErrDeviceBusy.
func (r *Registry) acquire(ctx context.Context, id string) (*entry, func(), error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}

	timer := time.NewTimer(r.opts.CommandTimeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return e, func() { <-e.sem }, nil
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w: %q", ErrDeviceBusy, id)
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %q: %w", ErrDeviceBusy, id, ctx.Err())
	}
}

// ensureConnLocked makes sure a usable conn to the current host exists,
// dialing if the handle is missing or points at a stale host.
func (r *Registry) ensureConnLocked(ctx context.Context, e *entry) error {
	host := e.getHost()

	if e.conn != nil && e.connHost == host {
		return nil
	}
	r.teardownLocked(e)

	dialCtx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	defer cancel()

	conn, err := r.dialer.Dial(dialCtx, host)
	if err != nil {
		r.observeLocked(e, StateDisconnected)
		r.logger.Warn("device unreachable", "id", e.id, "host", host, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrNotConnected, e.id, err)
	}

	e.conn = conn
	e.connHost = host
	r.logger.Info("device connected", "id", e.id, "host", host)
	return nil
}

// classifyLocked gathers the three probes and classifies them. Any probe
// failure tears the session down and reports disconnected.
func (r *Registry) classifyLocked(ctx context.Context, e *entry) State {
	power, err := r.shellOutputLocked(ctx, e, "dumpsys power")
	if err != nil {
		return r.observeLocked(e, StateDisconnected)
	}
	window, err := r.shellOutputLocked(ctx, e, cmdWindowDump)
	if err != nil {
		return r.observeLocked(e, StateDisconnected)
	}
	media, err := r.shellOutputLocked(ctx, e, "dumpsys media_session")
	if err != nil {
		return r.observeLocked(e, StateDisconnected)
	}

	state := r.classifier.Classify(Probes{Power: power, Window: window, MediaSession: media})
	return r.observeLocked(e, state)
}

// shellOutputLocked runs one shell command bounded by the command
// timeout. Failure tears the session down so the next call redials.
func (r *Registry) shellOutputLocked(ctx context.Context, e *entry, cmd string) (string, error) {
	if e.conn == nil {
		return "", fmt.Errorf("%w: %s", ErrNotConnected, e.id)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, r.opts.CommandTimeout)
	defer cancel()

	out, err := e.conn.Shell(cmdCtx, cmd)
	if err != nil {
		r.teardownLocked(e)
		return "", fmt.Errorf("%w: %s: %w", ErrNotConnected, e.id, err)
	}

	return out, nil
}

// shellLocked is shellOutputLocked for commands whose output is ignored.
func (r *Registry) shellLocked(ctx context.Context, e *entry, cmd string) error {
	_, err := r.shellOutputLocked(ctx, e, cmd)
	return err
}

// teardownLocked closes and forgets the conn, if any.
func (r *Registry) teardownLocked(e *entry) {
	if e.conn == nil {
		return
	}
	if err := e.conn.Close(); err != nil {
		r.logger.Debug("closing device session", "id", e.id, "error", err)
	}
	e.conn = nil
	e.connHost = ""
}

// observeLocked records a state observation, notifying sinks when it
// differs from the previous one. Returns the state for convenience.
func (r *Registry) observeLocked(e *entry, state State) State {
	previous := e.lastState
	if previous == state {
		return state
	}
	e.lastState = state

	r.sinksMu.RLock()
	sinks := make([]StateSink, len(r.sinks))
	copy(sinks, r.sinks)
	r.sinksMu.RUnlock()

	for _, sink := range sinks {
		sink.OnStateChange(e.id, previous, state)
	}

	r.logger.Debug("device state changed", "id", e.id, "from", previous, "to", state)
	return state
}
