// Package api provides the HTTP REST API and WebSocket server.
//
// It exposes the device registry over the route shapes consumed by
// Home-Assistant-style clients (/devices/list, /devices/action/...),
// plus a health endpoint and a WebSocket hub broadcasting
// device.state_changed events.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Connection failures to a device are operational outcomes, never HTTP
// faults: state endpoints answer 200 with "disconnected" and action
// endpoints answer 200 with success:false. 4xx is reserved for caller
// mistakes (bad IDs, unknown devices/actions) and 409 for a busy device
// session.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
