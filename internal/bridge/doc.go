// Package bridge orchestrates the MQTT side of the Qingping bridge.
//
// For every adopted device it maintains shared state, an adapter set,
// and a liveness watchdog, and wires three broker surfaces together:
//
//   - uplinks on qingping/{MAC}/up: decoded, dispatched by type tag,
//     acknowledged when the device asks for it, recorded to InfluxDB
//     when a recorder is attached
//   - availability on sensors/qingping/{MAC}/availability: tracked into
//     the device state
//   - commands on qingping/bridge/{MAC}/set/{key}: routed to the
//     matching writable adapter
//
// The bridge republishes a retained per-device state document on
// qingping/bridge/{MAC}/state after snapshots and successful writes,
// and raises retained alerts on qingping/bridge/alert/{MAC} when a
// device goes silent.
//
// Dependencies arrive as small interfaces (MQTTClient, Store, Recorder,
// CloudSync) so tests run against hand-rolled mocks.
package bridge
