package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// measurementDeviceState records classified playback state transitions.
	measurementDeviceState = "device_state"
)

// WriteStateTransition records a device state change as a time series point.
//
// Tags (indexed): device_id, state, previous_state.
// Fields: state_value (the state as a string field for last-value queries).
//
// The write is buffered; it returns immediately and never blocks on the
// network. Delivery failures surface through the SetOnError callback.
func (c *Client) WriteStateTransition(deviceID, previous, current string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	point := write.NewPoint(
		measurementDeviceState,
		map[string]string{
			"device_id":      deviceID,
			"state":          current,
			"previous_state": previous,
		},
		map[string]any{
			"state_value": current,
		},
		time.Now().UTC(),
	)

	c.writeAPI.WritePoint(point)

	return nil
}

// WritePoint buffers an arbitrary point. Used for measurements beyond
// state transitions (command latencies, connection events).
func (c *Client) WritePoint(point *write.Point) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.writeAPI.WritePoint(point)

	return nil
}
