package mqtt

import "fmt"

// Topic structure for the Fire TV server:
//
//	firetv/device/{device_id}/state   - retained, classified playback state
//	firetv/system/status              - retained, server online/offline status
//
// Device state messages are retained so that consumers joining late (for
// example a restarted Home Assistant instance) immediately see the last
// known state of every device.

// topicPrefix is the root namespace for all published topics.
const topicPrefix = "firetv"

// Topics provides topic name construction.
type Topics struct{}

// DeviceState returns the retained state topic for a device.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", topicPrefix, deviceID)
}

// SystemStatus returns the server status topic (online/offline, LWT target).
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", topicPrefix)
}
