// Package device implements the Fire TV device registry: registration,
// ADB session ownership, state classification, remote-control actions,
// and app lifecycle queries.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────┐
//	│                     Registry                       │
//	│                                                    │
//	│  entries: id → entry (host, session, last state)   │
//	│                                                    │
//	│  ┌──────────┐  ┌────────────┐  ┌───────────────┐   │
//	│  │Repository│  │ Classifier │  │  StateSinks   │   │
//	│  │ (SQLite) │  │  (policy)  │  │ (MQTT/Influx) │   │
//	│  └──────────┘  └────────────┘  └───────────────┘   │
//	└────────────────────────┬──────────────────────────┘
//	                         │ adb.Dialer / adb.Conn
//	                         ▼
//	                  local ADB server
//
// # Session discipline
//
// Each device entry owns a capacity-1 semaphore. Every operation that
// touches the device (classify, action, app query) holds the slot for
// its whole duration, so a device never sees interleaved commands. A
// second concurrent request waits up to the command timeout and then
// fails with ErrDeviceBusy. Different devices are fully independent.
//
// # State model
//
// States: off, standby, idle, play, pause, disconnected. Classification
// is a pure function of three dumpsys probes (power, window,
// media_session); the disconnected state is an infrastructure fact
// decided by the registry, not the classifier. Every observed transition
// is fanned out to registered StateSinks.
package device
