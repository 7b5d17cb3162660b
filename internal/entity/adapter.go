package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/qingping-bridge/internal/device"
	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// Publisher is the downlink publish surface. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Adapter is one typed view onto a device: a setting or a sensor
// channel.
type Adapter interface {
	// Key is the stable identifier, unique per device (the setting key
	// or sensor channel name).
	Key() string

	// Name is the human-readable label.
	Name() string

	// Available reports whether the adapter currently has backing data.
	Available() bool

	// Value returns the current value in display form. The boolean is
	// false when no value is known.
	Value() (any, bool)
}

// Writable is an Adapter with a write path. SetValue accepts the
// adapter's native type or its string form (as arriving from a command
// topic) and coerces it.
type Writable interface {
	Adapter
	SetValue(value any) error
}

// Device bundles what every adapter needs: the shared state, the
// publish surface and the command topic.
type Device struct {
	State     *device.State
	Publisher Publisher
	TopicDown string
}

// writeSettings performs the shared write path: optimistic update of
// the settings map, then a type-17 envelope on the command topic.
// Observers are notified only after the publish succeeds.
func (d Device) writeSettings(settings map[string]any) error {
	for k, v := range settings {
		d.State.SetSetting(k, v)
	}

	payload, err := qingping.EncodeSettings(d.State.NextID(), settings)
	if err != nil {
		return err
	}
	if err := d.Publisher.Publish(d.TopicDown, payload, 0, false); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	d.State.ApplySettings(settings)
	return nil
}

// toFloat coerces a write value to float64. Strings are parsed so the
// command topic surface can pass payloads through unmodified.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// toBool coerces a write value to bool, accepting the usual MQTT
// spellings case-insensitively.
func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int:
		return b != 0, nil
	case int64:
		return b != 0, nil
	case float64:
		return b != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "on", "true", "1", "yes":
			return true, nil
		case "off", "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, b)
	default:
		return false, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// toString coerces a write value to its string form.
func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}
