// Package qingping implements the wire protocol spoken by Qingping air
// monitors over MQTT.
//
// This package manages:
//   - MAC address normalisation and validation
//   - The JSON message envelope (type, id, need_ack, setting, sensorData)
//   - Downlink settings encoding and uplink acknowledgements
//   - The catalogue of writable device settings with their value domains
//
// # Message Types
//
// The devices tag every message with a string-encoded type:
//
//	"10"  heartbeat
//	"12"  sensor data
//	"13"  device status (wifi, firmware)
//	"17"  buffered sensor data (uplink) / settings push (downlink)
//	"18"  acknowledgement
//	"28"  settings snapshot
//
// Unknown types are not an error at this layer; callers decide how to
// handle them.
//
// # Usage
//
//	env, err := qingping.DecodeEnvelope(payload)
//	if err != nil {
//	    return err
//	}
//	if r := env.LatestReading(); r != nil {
//	    // process r.Temperature, r.CO2, ...
//	}
package qingping
