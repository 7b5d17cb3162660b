package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// WriteReading writes a decoded sensor reading to InfluxDB.
//
// This is the primary method for recording device telemetry. Fields the
// device did not report are omitted from the point. The write is
// non-blocking; data is batched and sent asynchronously.
//
// The point timestamp comes from the reading itself when present so
// buffered uploads land at their true measurement time, falling back to
// the current time for live frames without one.
//
// Parameters:
//   - mac: Device MAC in normalised form (tag, low cardinality)
//   - reading: Decoded sensorData element
func (c *Client) WriteReading(mac string, reading *qingping.Reading) {
	if !c.IsConnected() || reading == nil {
		return
	}

	fields := map[string]interface{}{}
	if reading.Temperature != nil {
		fields["temperature"] = reading.Temperature.Value
	}
	if reading.Humidity != nil {
		fields["humidity"] = reading.Humidity.Value
	}
	if reading.CO2 != nil {
		fields["co2"] = reading.CO2.Value
	}
	if reading.PM25 != nil {
		fields["pm25"] = reading.PM25.Value
	}
	if reading.PM10 != nil {
		fields["pm10"] = reading.PM10.Value
	}
	if reading.Battery != nil {
		fields["battery"] = reading.Battery.Value
	}
	if len(fields) == 0 {
		return
	}

	ts := time.Now()
	if reading.Timestamp != nil && reading.Timestamp.Value > 0 {
		ts = time.Unix(int64(reading.Timestamp.Value), 0)
	}

	point := write.NewPoint(
		"air_quality",
		map[string]string{
			"mac": mac,
		},
		fields,
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WriteSignal writes a WiFi signal strength sample for a device.
//
// Parameters:
//   - mac: Device MAC in normalised form
//   - ssid: Network name from the status frame
//   - rssi: Signal strength in dBm
func (c *Client) WriteSignal(mac, ssid string, rssi int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"wifi_signal",
		map[string]string{
			"mac":  mac,
			"ssid": ssid,
		},
		map[string]interface{}{
			"rssi": rssi,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., buffered data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
