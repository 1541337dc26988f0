// Package influxdb provides time-series recording of device state history.
//
// Every classified state transition (play -> pause, idle -> standby, etc.)
// is written as a point in the device_state measurement, tagged by device
// and state. This enables queries like "how many hours did the living room
// Fire TV spend playing this week" without the HTTP API keeping history.
//
// Recording is optional and strictly best-effort: when InfluxDB is disabled
// or unreachable, device control continues unaffected. Writes are batched
// and asynchronous; failures surface through an error callback, never
// through the device operation that produced the point.
package influxdb
