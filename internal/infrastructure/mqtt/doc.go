// Package mqtt provides the MQTT publishing client for device state.
//
// The server publishes classified device states to an MQTT broker so that
// external consumers (Home Assistant, Node-RED, custom dashboards) can react
// to state changes without polling the HTTP API. The client is publish-only;
// the server accepts commands over HTTP, never over MQTT.
//
// # Topic Structure
//
//	firetv/device/{device_id}/state   retained JSON state document
//	firetv/system/status              retained online/offline status (LWT)
//
// # Connection Management
//
// The client auto-reconnects with exponential backoff. A Last Will and
// Testament message on firetv/system/status lets consumers distinguish a
// crashed server from a gracefully stopped one.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceState("living-room")
//	err = client.PublishRetained(topic, payload)
package mqtt
