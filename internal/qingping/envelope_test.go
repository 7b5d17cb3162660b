package qingping

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeEnvelope_SensorData(t *testing.T) {
	payload := []byte(`{
		"type": "12",
		"id": 42,
		"need_ack": 1,
		"sensorData": [{
			"timestamp": {"value": 1700000000},
			"temperature": {"value": 21.53, "status": 0},
			"humidity": {"value": 48.2},
			"co2": {"value": 612},
			"pm25": {"value": 4},
			"pm10": {"value": 6},
			"battery": {"value": 100}
		}]
	}`)

	env, err := DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}

	if env.Type != TypeSensorData {
		t.Errorf("Type = %q, want %q", env.Type, TypeSensorData)
	}
	if env.ID != 42 {
		t.Errorf("ID = %d, want 42", env.ID)
	}
	if env.NeedAck != 1 {
		t.Errorf("NeedAck = %d, want 1", env.NeedAck)
	}

	r := env.LatestReading()
	if r == nil {
		t.Fatal("LatestReading() = nil, want reading")
	}
	if r.Temperature == nil || r.Temperature.Value != 21.53 {
		t.Errorf("Temperature = %+v, want value 21.53", r.Temperature)
	}
	if r.CO2 == nil || r.CO2.Value != 612 {
		t.Errorf("CO2 = %+v, want value 612", r.CO2)
	}
}

func TestDecodeEnvelope_NumericTypeTag(t *testing.T) {
	// Some firmware paths emit the type tag as a bare number.
	env, err := DecodeEnvelope([]byte(`{"type": 12, "id": "7"}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.Type != "12" {
		t.Errorf("Type = %q, want \"12\"", env.Type)
	}
	if env.ID != 7 {
		t.Errorf("ID = %d, want 7", env.ID)
	}
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "not json at all"},
		{"truncated", `{"type": "12"`},
		{"array root", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.payload))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("error = %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestLatestReading_BufferedMessage(t *testing.T) {
	// Buffered uploads carry readings oldest first; the last element is
	// the current one.
	payload := []byte(`{
		"type": "17",
		"id": 3,
		"sensorData": [
			{"temperature": {"value": 20.0}},
			{"temperature": {"value": 20.5}},
			{"temperature": {"value": 21.0}}
		]
	}`)

	env, err := DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}

	r := env.LatestReading()
	if r == nil || r.Temperature == nil {
		t.Fatal("LatestReading() missing temperature")
	}
	if r.Temperature.Value != 21.0 {
		t.Errorf("latest temperature = %v, want 21.0", r.Temperature.Value)
	}
}

func TestLatestReading_Empty(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type": "10", "id": 1}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if r := env.LatestReading(); r != nil {
		t.Errorf("LatestReading() = %+v, want nil", r)
	}
}

func TestEnvelope_WiFiInfo(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type": "13", "wifi_info": "HomeNet,-52,6", "sw_version": "1.2.3"}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}

	if ssid := env.WiFiSSID(); ssid != "HomeNet" {
		t.Errorf("WiFiSSID() = %q, want HomeNet", ssid)
	}
	rssi, ok := env.WiFiRSSI()
	if !ok || rssi != -52 {
		t.Errorf("WiFiRSSI() = %d, %v, want -52, true", rssi, ok)
	}
	if env.Firmware != "1.2.3" {
		t.Errorf("Firmware = %q, want 1.2.3", env.Firmware)
	}
}

func TestEnvelope_FirmwareFallback(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type": "13", "module_version": "2.0.0"}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.Firmware != "2.0.0" {
		t.Errorf("Firmware = %q, want module_version fallback 2.0.0", env.Firmware)
	}
}

func TestEncodeAck(t *testing.T) {
	payload, err := EncodeAck(99, 1700000000)
	if err != nil {
		t.Fatalf("EncodeAck() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}

	if got["type"] != "18" {
		t.Errorf("type = %v, want \"18\"", got["type"])
	}
	if got["ack_id"] != float64(99) {
		t.Errorf("ack_id = %v, want 99", got["ack_id"])
	}
	if got["code"] != float64(0) {
		t.Errorf("code = %v, want 0", got["code"])
	}
	if got["timestamp"] != float64(1700000000) {
		t.Errorf("timestamp = %v, want 1700000000", got["timestamp"])
	}
	if got["desc"] != "" {
		t.Errorf("desc = %v, want empty string", got["desc"])
	}
}

func TestEncodeSettings(t *testing.T) {
	payload, err := EncodeSettings(5, map[string]any{SettingScreensaver: 2})
	if err != nil {
		t.Fatalf("EncodeSettings() error = %v", err)
	}

	var got struct {
		ID      int64          `json:"id"`
		NeedAck int            `json:"need_ack"`
		Type    string         `json:"type"`
		Setting map[string]any `json:"setting"`
	}
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal settings push: %v", err)
	}

	if got.ID != 5 {
		t.Errorf("id = %d, want 5", got.ID)
	}
	if got.NeedAck != 1 {
		t.Errorf("need_ack = %d, want 1", got.NeedAck)
	}
	if got.Type != TypeBuffered {
		t.Errorf("type = %q, want %q", got.Type, TypeBuffered)
	}
	if got.Setting[SettingScreensaver] != float64(2) {
		t.Errorf("setting = %v, want screensaver_type=2", got.Setting)
	}
}

func TestEncodeSettings_Empty(t *testing.T) {
	if _, err := EncodeSettings(1, nil); err == nil {
		t.Error("EncodeSettings(nil) expected error, got nil")
	}
}
