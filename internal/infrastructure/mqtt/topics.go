package mqtt

import "fmt"

// Topic prefixes for the Qingping device and bridge topic hierarchy.
//
// Devices publish on qingping/{MAC}/up and listen on qingping/{MAC}/down,
// matching the topic templates pushed to the device during provisioning.
// Bridge-owned topics live under qingping/bridge/.
const (
	// TopicPrefixDevice is the base for all device topics.
	TopicPrefixDevice = "qingping"

	// TopicPrefixBridge is the base for bridge-owned topics.
	TopicPrefixBridge = "qingping/bridge"

	// TopicPrefixAvailability is the base for device availability topics
	// published by external tooling (LWT relays, presence detectors).
	TopicPrefixAvailability = "sensors/qingping"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	up := topics.DeviceUp("AABBCCDDEEFF")
//	// Returns: "qingping/AABBCCDDEEFF/up"
type Topics struct{}

// DeviceUp returns the uplink topic a device publishes on.
//
// Example: qingping/AABBCCDDEEFF/up
func (Topics) DeviceUp(mac string) string {
	return fmt.Sprintf("%s/%s/up", TopicPrefixDevice, mac)
}

// DeviceDown returns the downlink topic a device listens on.
//
// Example: qingping/AABBCCDDEEFF/down
func (Topics) DeviceDown(mac string) string {
	return fmt.Sprintf("%s/%s/down", TopicPrefixDevice, mac)
}

// DeviceAvailability returns the external availability topic for a device.
//
// Example: sensors/qingping/AABBCCDDEEFF/availability
func (Topics) DeviceAvailability(mac string) string {
	return fmt.Sprintf("%s/%s/availability", TopicPrefixAvailability, mac)
}

// BridgeStatus returns the bridge's own status topic, used for the LWT.
//
// Example: qingping/bridge/status
func (Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixBridge)
}

// BridgeAlert returns the liveness alert topic for a device.
// Alerts are published retained so late subscribers see the current state.
//
// Example: qingping/bridge/alert/AABBCCDDEEFF
func (Topics) BridgeAlert(mac string) string {
	return fmt.Sprintf("%s/alert/%s", TopicPrefixBridge, mac)
}

// BridgeSet returns the control topic for writing a single device setting.
//
// Example: qingping/bridge/AABBCCDDEEFF/set/screen_brightness
func (Topics) BridgeSet(mac, key string) string {
	return fmt.Sprintf("%s/%s/set/%s", TopicPrefixBridge, mac, key)
}

// BridgeState returns the topic where the bridge republishes a device's
// decoded state for downstream consumers.
//
// Example: qingping/bridge/AABBCCDDEEFF/state
func (Topics) BridgeState(mac string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixBridge, mac)
}

// AllDeviceUp returns a pattern matching uplinks from every device.
// Used for discovery scans of unadopted monitors.
//
// Pattern: qingping/+/up
func (Topics) AllDeviceUp() string {
	return fmt.Sprintf("%s/+/up", TopicPrefixDevice)
}

// AllBridgeSet returns a pattern matching all setting writes.
//
// Pattern: qingping/bridge/+/set/+
func (Topics) AllBridgeSet() string {
	return fmt.Sprintf("%s/+/set/+", TopicPrefixBridge)
}

// AllAvailability returns a pattern matching all availability updates.
//
// Pattern: sensors/qingping/+/availability
func (Topics) AllAvailability() string {
	return fmt.Sprintf("%s/+/availability", TopicPrefixAvailability)
}
