// Package adb provides the transport seam between the device registry and
// Android Debug Bridge.
//
// The registry only ever sees two small interfaces: Dialer (establish a
// session to a host:port endpoint) and Conn (run shell commands over that
// session). The production implementation, ServerDialer, routes everything
// through the local ADB server daemon via goadb, which keeps the actual
// ADB wire protocol (auth handshake, transport multiplexing) out of this
// codebase. Tests substitute in-memory fakes.
//
//	registry ──Dialer──▶ ServerDialer ──goadb──▶ adb server ──TCP──▶ Fire TV
package adb
