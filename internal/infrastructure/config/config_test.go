package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
bridge:
  id: "bridge-test"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 0
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "bridge-test" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "bridge-test")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults survive a partial file
	if cfg.Bridge.ReportInterval != 60 {
		t.Errorf("Bridge.ReportInterval = %d, want 60", cfg.Bridge.ReportInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
bridge:
  id: ""
database:
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty bridge.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	// validBase returns a config that passes validation; tests mutate it.
	validBase := func() *Config {
		return &Config{
			Bridge: BridgeConfig{
				ID:                "bridge-001",
				ReportInterval:    60,
				KeepaliveInterval: 300,
			},
			Database: DatabaseConfig{Path: "/data/qingping.db"},
			MQTT: MQTTConfig{
				Broker: MQTTBrokerConfig{Port: 1883},
				QoS:    0,
			},
			Cloud: CloudConfig{Timeout: 30},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing bridge ID",
			mutate:  func(c *Config) { c.Bridge.ID = "" },
			wantErr: true,
		},
		{
			name:    "report interval too low",
			mutate:  func(c *Config) { c.Bridge.ReportInterval = 10 },
			wantErr: true,
		},
		{
			name:    "report interval too high",
			mutate:  func(c *Config) { c.Bridge.ReportInterval = 7200 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid broker port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "app key without secret",
			mutate:  func(c *Config) { c.Cloud.AppKey = "key-only" },
			wantErr: true,
		},
		{
			name:    "email without password",
			mutate:  func(c *Config) { c.Cloud.Email = "user@example.com" },
			wantErr: true,
		},
		{
			name: "complete cloud credentials",
			mutate: func(c *Config) {
				c.Cloud.AppKey = "key"
				c.Cloud.AppSecret = "secret"
				c.Cloud.Email = "user@example.com"
				c.Cloud.Password = "pass"
			},
			wantErr: false,
		},
		{
			name:    "zero cloud timeout",
			mutate:  func(c *Config) { c.Cloud.Timeout = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetDurations(t *testing.T) {
	cfg := &Config{
		Bridge: BridgeConfig{KeepaliveInterval: 300},
		Cloud:  CloudConfig{Timeout: 30},
	}

	if got := cfg.GetCloudTimeout().Seconds(); got != 30 {
		t.Errorf("GetCloudTimeout() = %v, want 30", got)
	}

	if got := cfg.GetKeepaliveInterval().Seconds(); got != 300 {
		t.Errorf("GetKeepaliveInterval() = %v, want 300", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("QINGPING_DATABASE_PATH", "/custom/path.db")
	t.Setenv("QINGPING_MQTT_HOST", "mqtt.example.com")
	t.Setenv("QINGPING_MQTT_USERNAME", "testuser")
	t.Setenv("QINGPING_MQTT_PASSWORD", "testpass")
	t.Setenv("QINGPING_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("QINGPING_CLOUD_APP_KEY", "cloud-key")
	t.Setenv("QINGPING_CLOUD_APP_SECRET", "cloud-secret")
	t.Setenv("QINGPING_CLOUD_EMAIL", "user@example.com")
	t.Setenv("QINGPING_CLOUD_PASSWORD", "cloud-pass")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Cloud.AppKey != "cloud-key" {
		t.Errorf("Cloud.AppKey = %q, want %q", cfg.Cloud.AppKey, "cloud-key")
	}

	if cfg.Cloud.Email != "user@example.com" {
		t.Errorf("Cloud.Email = %q, want %q", cfg.Cloud.Email, "user@example.com")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.ID == "" {
		t.Error("defaultConfig should have non-empty Bridge.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}
}
