package mqtt

import "errors"

// Sentinel errors for MQTT operations.
// Use errors.Is() to check error types.
var (
	// ErrNotConnected indicates the client is not connected to the broker.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed indicates a message could not be published.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidTopic indicates a malformed topic string.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidQoS indicates an invalid QoS level (must be 0, 1, or 2).
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")
)
