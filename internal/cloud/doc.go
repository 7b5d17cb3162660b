// Package cloud implements the two Qingping HTTP surfaces the bridge
// talks to.
//
// Client wraps the official cloud API (apis.cleargrass.com): OAuth2
// client-credentials authentication, device listing, and settings
// writes. Its main job here is TriggerDeviceSync, which pushes a
// harmless settings write through the cloud so a silent device
// re-downloads its MQTT configuration on the next check-in.
//
// DeveloperClient wraps the developer portal (developer.cleargrass.com)
// used for provisioning: account login, private MQTT config management,
// and binding devices to a config so they start publishing to the local
// broker.
//
// Both clients are resty-based with bounded timeouts and are safe for
// concurrent use.
package cloud
