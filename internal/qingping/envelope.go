package qingping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Message type tags used by the device firmware.
// The wire value is a string-encoded small integer.
const (
	TypeHeartbeat  = "10" // periodic heartbeat, no payload of interest
	TypeSensorData = "12" // live sensor readings
	TypeStatus     = "13" // device status (wifi_info, firmware version)
	TypeBuffered   = "17" // uplink: buffered readings; downlink: settings push
	TypeAck        = "18" // acknowledgement (both directions)
	TypeSettings   = "28" // full settings snapshot
)

// Measurement is a single sensor value with optional device status code.
type Measurement struct {
	Value  float64 `json:"value"`
	Status *int    `json:"status,omitempty"`
}

// Reading holds one element of the sensorData array.
// Fields the device does not report are nil.
type Reading struct {
	Timestamp   *Measurement `json:"timestamp,omitempty"`
	Battery     *Measurement `json:"battery,omitempty"`
	Temperature *Measurement `json:"temperature,omitempty"`
	Humidity    *Measurement `json:"humidity,omitempty"`
	CO2         *Measurement `json:"co2,omitempty"`
	PM25        *Measurement `json:"pm25,omitempty"`
	PM10        *Measurement `json:"pm10,omitempty"`
}

// Envelope is a decoded uplink message from a device.
//
// The firmware is loose about scalar encodings: "type" and "id" may
// arrive as JSON strings or numbers depending on message path, so
// decoding normalises both.
type Envelope struct {
	// Type is the message type tag, normalised to its string form.
	Type string

	// ID is the sender's monotonic message counter.
	ID int64

	// NeedAck is 1 when the device expects a type-18 acknowledgement.
	NeedAck int

	// Setting holds the flat settings map for type-28 (and type-17
	// downlink echoes). Nil when absent.
	Setting map[string]any

	// SensorData holds readings for type-12 and type-17 messages.
	SensorData []Reading

	// WiFiInfo is the raw "ssid,rssi,..." string from type-13 messages.
	WiFiInfo string

	// Firmware is the reported firmware version, from sw_version or
	// module_version (whichever is present).
	Firmware string

	// Timestamp is the device wall-clock in unix seconds, if reported.
	Timestamp int64
}

// wireEnvelope mirrors the raw JSON shape with tolerant scalar types.
type wireEnvelope struct {
	Type          flexString     `json:"type"`
	ID            flexInt        `json:"id"`
	NeedAck       flexInt        `json:"need_ack"`
	Setting       map[string]any `json:"setting"`
	SensorData    []Reading      `json:"sensorData"`
	WiFiInfo      string         `json:"wifi_info"`
	SWVersion     string         `json:"sw_version"`
	ModuleVersion string         `json:"module_version"`
	Timestamp     flexInt        `json:"timestamp"`
}

// flexString decodes a JSON string or number into its string form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt decodes a JSON number or numeric string into an int64.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("parsing integer %q: %w", s, err)
	}
	*f = flexInt(int64(v))
	return nil
}

// DecodeEnvelope parses an uplink message payload.
//
// Parameters:
//   - payload: Raw MQTT message payload (JSON)
//
// Returns:
//   - *Envelope: Decoded message
//   - error: ErrMalformedPayload if the payload is not a JSON object
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	firmware := w.SWVersion
	if firmware == "" {
		firmware = w.ModuleVersion
	}

	return &Envelope{
		Type:       string(w.Type),
		ID:         int64(w.ID),
		NeedAck:    int(w.NeedAck),
		Setting:    w.Setting,
		SensorData: w.SensorData,
		WiFiInfo:   w.WiFiInfo,
		Firmware:   firmware,
		Timestamp:  int64(w.Timestamp),
	}, nil
}

// LatestReading returns the most recent element of the sensorData array.
//
// Buffered uploads (type 17) carry multiple readings ordered oldest
// first; the final element is the current one. Returns nil when the
// message carries no readings.
func (e *Envelope) LatestReading() *Reading {
	if len(e.SensorData) == 0 {
		return nil
	}
	return &e.SensorData[len(e.SensorData)-1]
}

// WiFiSSID extracts the network name from the wifi_info field.
// Returns "" when the field is absent or malformed.
func (e *Envelope) WiFiSSID() string {
	if !strings.Contains(e.WiFiInfo, ",") {
		return ""
	}
	return strings.SplitN(e.WiFiInfo, ",", 2)[0]
}

// WiFiRSSI extracts the signal strength (dBm) from the wifi_info field.
// The second field is reported as a signed integer. Returns 0, false
// when absent or malformed.
func (e *Envelope) WiFiRSSI() (int, bool) {
	parts := strings.Split(e.WiFiInfo, ",")
	if len(parts) < 2 {
		return 0, false
	}
	rssi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, false
	}
	return rssi, true
}

// ack is the wire shape of a type-18 acknowledgement.
type ack struct {
	Type      string `json:"type"`
	AckID     int64  `json:"ack_id"`
	Code      int    `json:"code"`
	Timestamp int64  `json:"timestamp"`
	Desc      string `json:"desc"`
}

// EncodeAck builds the type-18 acknowledgement for an uplink message
// that set need_ack.
//
// Parameters:
//   - msgID: The id field of the message being acknowledged
//   - unixTime: Current time in unix seconds
//
// Returns:
//   - []byte: Compact JSON payload for the device command topic
func EncodeAck(msgID int64, unixTime int64) ([]byte, error) {
	return json.Marshal(ack{
		Type:      TypeAck,
		AckID:     msgID,
		Code:      0,
		Timestamp: unixTime,
		Desc:      "",
	})
}

// settingsPush is the wire shape of a downlink settings envelope.
type settingsPush struct {
	ID      int64          `json:"id"`
	NeedAck int            `json:"need_ack"`
	Type    string         `json:"type"`
	Setting map[string]any `json:"setting"`
}

// EncodeSettings builds a type-17 downlink envelope carrying one or
// more settings writes.
//
// Parameters:
//   - msgID: Monotonic per-device message counter
//   - settings: Setting keys and their new values
//
// Returns:
//   - []byte: Compact JSON payload for the device command topic
func EncodeSettings(msgID int64, settings map[string]any) ([]byte, error) {
	if len(settings) == 0 {
		return nil, fmt.Errorf("%w: empty settings map", ErrUnknownSetting)
	}
	return json.Marshal(settingsPush{
		ID:      msgID,
		NeedAck: 1,
		Type:    TypeBuffered,
		Setting: settings,
	})
}
