// Package influxdb provides InfluxDB connectivity for the Qingping bridge.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, reading writes, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Air quality readings (temperature, humidity, CO2, PM2.5, PM10)
//   - Battery levels
//   - WiFi signal strength samples
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "home",
//	    Bucket: "air_quality",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record a decoded reading
//	client.WriteReading("AABBCCDDEEFF", envelope.LatestReading())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
