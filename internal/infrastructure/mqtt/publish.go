package mqtt

import (
	"fmt"
	"strings"
)

// Publish sends a message to the specified topic.
//
// QoS levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (acknowledged delivery)
//   - 2: Exactly once (assured delivery)
func (c *Client) Publish(topic string, qos byte, retained bool, payload any) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained publishes a retained message at the configured QoS level.
// Retained messages are delivered to new subscribers immediately upon
// subscription, which is the desired behavior for device state topics.
func (c *Client) PublishRetained(topic string, payload any) error {
	return c.Publish(topic, byte(c.cfg.QoS), true, payload)
}

// validateTopic checks that a topic string is valid for publishing.
//
// Publish topics must not contain wildcards (those are subscribe-only
// in the MQTT protocol).
func validateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic: %s", ErrInvalidTopic, topic)
	}
	if strings.Contains(topic, "\x00") {
		return fmt.Errorf("%w: null character in topic", ErrInvalidTopic)
	}

	return nil
}
