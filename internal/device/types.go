package device

import "time"

// State is the classified power/playback state of a device.
type State string

// Device states. A device is disconnected whenever its ADB session is
// unusable; otherwise it is in exactly one of the other five states.
const (
	StateOff          State = "off"
	StateStandby      State = "standby"
	StateIdle         State = "idle"
	StatePlay         State = "play"
	StatePause        State = "pause"
	StateDisconnected State = "disconnected"
)

// Device represents a registered Fire TV endpoint.
//
// Only the identity fields are persisted; the connection handle and the
// last classified state live in the registry.
type Device struct {
	ID        string    `json:"id"`
	Host      string    `json:"host"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppStatus is the lifecycle status of an app package on a device.
type AppStatus string

// App statuses as reported by AppState.
const (
	AppForeground AppStatus = "foreground"
	AppBackground AppStatus = "background"
	AppStopped    AppStatus = "stopped"
)
