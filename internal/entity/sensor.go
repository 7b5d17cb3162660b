package entity

import (
	"time"

	"github.com/nerrad567/qingping-bridge/internal/device"
	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// Sensor is a read-only projection of the device's last reading or
// diagnostic state. SetValue always fails.
type Sensor struct {
	dev  Device
	key  string
	name string
	unit string
	read func(*device.State) (any, bool)
}

func (s *Sensor) Key() string  { return s.key }
func (s *Sensor) Name() string { return s.name }

// Unit returns the display unit, empty for dimensionless channels.
func (s *Sensor) Unit() string { return s.unit }

func (s *Sensor) Available() bool {
	_, ok := s.read(s.dev.State)
	return ok
}

func (s *Sensor) Value() (any, bool) {
	return s.read(s.dev.State)
}

// SetValue is present so sensors share the Writable surface with
// settings adapters when addressed by key; it always refuses.
func (s *Sensor) SetValue(any) error {
	return ErrReadOnly
}

// measurement projects one field of the last reading.
func measurement(pick func(*qingping.Reading) *qingping.Measurement) func(*device.State) (any, bool) {
	return func(st *device.State) (any, bool) {
		reading, _ := st.Reading()
		if reading == nil {
			return nil, false
		}
		m := pick(reading)
		if m == nil {
			return nil, false
		}
		return m.Value, true
	}
}

// Sensors builds the fixed read-only channel set for one device.
func Sensors(dev Device) []*Sensor {
	return []*Sensor{
		{dev, "temperature", "Temperature", "°C",
			measurement(func(r *qingping.Reading) *qingping.Measurement { return r.Temperature })},
		{dev, "humidity", "Humidity", "%",
			measurement(func(r *qingping.Reading) *qingping.Measurement { return r.Humidity })},
		{dev, "co2", "CO2", "ppm",
			measurement(func(r *qingping.Reading) *qingping.Measurement { return r.CO2 })},
		{dev, "pm25", "PM2.5", "µg/m³",
			measurement(func(r *qingping.Reading) *qingping.Measurement { return r.PM25 })},
		{dev, "pm10", "PM10", "µg/m³",
			measurement(func(r *qingping.Reading) *qingping.Measurement { return r.PM10 })},
		{dev, "battery", "Battery", "%",
			measurement(func(r *qingping.Reading) *qingping.Measurement { return r.Battery })},
		{dev, "wifi_ssid", "WiFi Network", "", func(st *device.State) (any, bool) {
			ssid, _ := st.Network()
			return ssid, ssid != ""
		}},
		{dev, "wifi_rssi", "WiFi Signal", "dBm", func(st *device.State) (any, bool) {
			ssid, rssi := st.Network()
			return rssi, ssid != ""
		}},
		{dev, "firmware", "Firmware Version", "", func(st *device.State) (any, bool) {
			fw := st.Firmware()
			return fw, fw != ""
		}},
		{dev, "message_type", "Last Message Type", "", func(st *device.State) (any, bool) {
			msgType, _ := st.LastSeen()
			return msgType, msgType != ""
		}},
		{dev, "last_update", "Last Update", "", func(st *device.State) (any, bool) {
			_, at := st.LastSeen()
			if at.IsZero() {
				return nil, false
			}
			return at.Format(time.RFC3339), true
		}},
	}
}
