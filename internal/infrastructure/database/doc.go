// Package database provides SQLite connection management for the Fire TV server.
//
// It wraps database/sql with:
//   - Connection lifecycle (open, configure, close)
//   - WAL mode and busy-timeout pragmas
//   - Embedded SQL migrations (see the migrations package)
//   - Health checks
//
// The registered device list is the only persistent data; everything else
// (connection handles, classified states) is process-lifetime state owned
// by the device registry.
package database
