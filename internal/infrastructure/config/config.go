package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Qingping bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains bridge-wide settings.
type BridgeConfig struct {
	// ID identifies this bridge instance in health and alert messages.
	ID string `yaml:"id"`

	// ReportInterval is the fallback reporting cadence in seconds, used
	// for keepalive pushes before a device announces its own setting.
	ReportInterval int `yaml:"report_interval"`

	// KeepaliveInterval is how often the bridge re-pushes the interval
	// configuration to each device, in seconds.
	KeepaliveInterval int `yaml:"keepalive_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for time-series
// recording of sensor readings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// CloudConfig contains Qingping cloud credentials.
//
// The app key/secret pair authenticates against the legacy OAuth2 API
// used for watchdog-driven sync recovery. The email/password pair
// authenticates against the developer portal used for provisioning and
// device binding. Each pair is optional; the corresponding features are
// disabled when the credentials are absent.
type CloudConfig struct {
	AppKey    string `yaml:"app_key"`
	AppSecret string `yaml:"app_secret"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`

	// Timeout bounds every cloud HTTP request, in seconds.
	Timeout int `yaml:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: QINGPING_SECTION_KEY
// For example: QINGPING_DATABASE_PATH, QINGPING_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:                "qingping-bridge",
			ReportInterval:    60,
			KeepaliveInterval: 300,
		},
		Database: DatabaseConfig{
			Path:        "./data/qingping.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "qingping-bridge",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Cloud: CloudConfig{
			Timeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: QINGPING_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("QINGPING_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("QINGPING_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("QINGPING_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("QINGPING_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("QINGPING_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Cloud credentials - keep secrets out of the config file
	if v := os.Getenv("QINGPING_CLOUD_APP_KEY"); v != "" {
		cfg.Cloud.AppKey = v
	}
	if v := os.Getenv("QINGPING_CLOUD_APP_SECRET"); v != "" {
		cfg.Cloud.AppSecret = v
	}
	if v := os.Getenv("QINGPING_CLOUD_EMAIL"); v != "" {
		cfg.Cloud.Email = v
	}
	if v := os.Getenv("QINGPING_CLOUD_PASSWORD"); v != "" {
		cfg.Cloud.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.ReportInterval < 30 || c.Bridge.ReportInterval > 3600 {
		errs = append(errs, "bridge.report_interval must be between 30 and 3600 seconds")
	}
	if c.Bridge.KeepaliveInterval < 1 {
		errs = append(errs, "bridge.keepalive_interval must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	// Cloud validation - credentials come in pairs
	if (c.Cloud.AppKey == "") != (c.Cloud.AppSecret == "") {
		errs = append(errs, "cloud.app_key and cloud.app_secret must be set together")
	}
	if (c.Cloud.Email == "") != (c.Cloud.Password == "") {
		errs = append(errs, "cloud.email and cloud.password must be set together")
	}
	if c.Cloud.Timeout < 1 {
		errs = append(errs, "cloud.timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCloudTimeout returns the cloud HTTP timeout as a Duration.
func (c *Config) GetCloudTimeout() time.Duration {
	return time.Duration(c.Cloud.Timeout) * time.Second
}

// GetKeepaliveInterval returns the keepalive publish interval as a Duration.
func (c *Config) GetKeepaliveInterval() time.Duration {
	return time.Duration(c.Bridge.KeepaliveInterval) * time.Second
}
