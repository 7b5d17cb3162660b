package bridge

import "errors"

var (
	// ErrNoMQTT is returned by New when no MQTT client is supplied.
	ErrNoMQTT = errors.New("bridge: mqtt client is required")

	// ErrNoStore is returned by New when no device store is supplied.
	ErrNoStore = errors.New("bridge: device store is required")

	// ErrUnknownDevice is returned when a message references a MAC the
	// bridge is not managing.
	ErrUnknownDevice = errors.New("bridge: unknown device")

	// ErrUnknownKey is returned when a set command names a key with no
	// matching adapter.
	ErrUnknownKey = errors.New("bridge: unknown setting key")

	// ErrReadOnlyKey is returned when a set command targets a sensor.
	ErrReadOnlyKey = errors.New("bridge: key is read-only")
)
