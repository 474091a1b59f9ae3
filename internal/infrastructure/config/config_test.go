package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
bridge:
  device_id: "hall"
projector:
  host: "192.168.1.50"
  password: "JBMIAProjectorLink"
  status_poll_interval: 15s
  info_poll_interval: 2m
mqtt:
  broker:
    host: "mqtt.local"
  qos: 0
database:
  path: "/tmp/test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := ProjectorConfig{
		Host:               "192.168.1.50",
		Port:               4352,
		Password:           "JBMIAProjectorLink",
		Timeout:            5 * time.Second,
		ReconnectDelay:     10 * time.Second,
		StatusPollInterval: 15 * time.Second,
		InfoPollInterval:   2 * time.Minute,
	}
	if diff := cmp.Diff(want, cfg.Projector); diff != "" {
		t.Errorf("Projector mismatch (-want +got):\n%s", diff)
	}
	if cfg.Bridge.DeviceID != "hall" {
		t.Errorf("Bridge.DeviceID = %q, want %q", cfg.Bridge.DeviceID, "hall")
	}
	if cfg.MQTT.Broker.Host != "mqtt.local" || cfg.MQTT.QoS != 0 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[bridge]
device_id = "boardroom"

[projector]
host = "10.0.0.7"
port = 4353
reconnect_delay = "3s"

[influxdb]
enabled = true
url = "http://influx:8086"
org = "home"
bucket = "projectors"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.DeviceID != "boardroom" {
		t.Errorf("Bridge.DeviceID = %q", cfg.Bridge.DeviceID)
	}
	if cfg.Projector.Host != "10.0.0.7" || cfg.Projector.Port != 4353 {
		t.Errorf("Projector = %s:%d", cfg.Projector.Host, cfg.Projector.Port)
	}
	if cfg.Projector.ReconnectDelay != 3*time.Second {
		t.Errorf("ReconnectDelay = %v, want 3s", cfg.Projector.ReconnectDelay)
	}
	if !cfg.InfluxDB.Enabled || cfg.InfluxDB.Bucket != "projectors" {
		t.Errorf("InfluxDB = %+v", cfg.InfluxDB)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidSyntax(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "config.yaml", content: "invalid: [yaml: content"},
		{name: "toml", file: "config.toml", content: "[projector\nhost ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), "parsing config file") {
				t.Errorf("Load() error = %v, want parse error", err)
			}
		})
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
projector:
  port: 4352
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for missing projector.host, got nil")
	}
	if !strings.Contains(err.Error(), "projector.host is required") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
projector:
  host: "192.168.1.50"
`)
	t.Setenv("PJLINK_BRIDGE_PROJECTOR_HOST", "192.168.1.99")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Projector.Host != "192.168.1.99" {
		t.Errorf("Projector.Host = %q, want env value", cfg.Projector.Host)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Projector.Host = "192.168.1.50"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "missing device ID",
			mutate:  func(c *Config) { c.Bridge.DeviceID = "" },
			wantErr: "bridge.device_id is required",
		},
		{
			name:    "wildcard in device ID",
			mutate:  func(c *Config) { c.Bridge.DeviceID = "hall/+" },
			wantErr: "bridge.device_id must not contain",
		},
		{
			name:    "missing projector host",
			mutate:  func(c *Config) { c.Projector.Host = "" },
			wantErr: "projector.host is required",
		},
		{
			name:    "projector port out of range",
			mutate:  func(c *Config) { c.Projector.Port = 70000 },
			wantErr: "projector.port",
		},
		{
			name:    "password too long",
			mutate:  func(c *Config) { c.Projector.Password = Secret(strings.Repeat("x", 33)) },
			wantErr: "projector.password",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Projector.StatusPollInterval = 0 },
			wantErr: "projector intervals must be positive",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "database enabled without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "database disabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Path = ""
			},
		},
		{
			name:    "influxdb enabled without bucket",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "api port out of range",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name: "api disabled ignores port",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAggregates(t *testing.T) {
	cfg := validConfig()
	cfg.Projector.Host = ""
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"projector.host", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %q", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("PJLINK_BRIDGE_DEVICE_ID", "lobby")
	t.Setenv("PJLINK_BRIDGE_PROJECTOR_HOST", "10.1.1.1")
	t.Setenv("PJLINK_BRIDGE_PROJECTOR_PORT", "14352")
	t.Setenv("PJLINK_BRIDGE_PROJECTOR_PASSWORD", "panasonic")
	t.Setenv("PJLINK_BRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("PJLINK_BRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("PJLINK_BRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("PJLINK_BRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("PJLINK_BRIDGE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("PJLINK_BRIDGE_API_PORT", "9000")
	t.Setenv("PJLINK_BRIDGE_LOG_LEVEL", "debug")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Bridge.DeviceID", cfg.Bridge.DeviceID, "lobby"},
		{"Projector.Host", cfg.Projector.Host, "10.1.1.1"},
		{"Projector.Port", cfg.Projector.Port, 14352},
		{"Projector.Password", cfg.Projector.Password.Value(), "panasonic"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password.Value(), "testpass"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"InfluxDB.Token", cfg.InfluxDB.Token.Value(), "secret-token"},
		{"API.Port", cfg.API.Port, 9000},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_InvalidNumber(t *testing.T) {
	t.Setenv("PJLINK_BRIDGE_PROJECTOR_PORT", "not-a-port")

	err := applyEnvOverrides(defaultConfig())
	if err == nil || !strings.Contains(err.Error(), "PJLINK_BRIDGE_PROJECTOR_PORT") {
		t.Errorf("applyEnvOverrides() error = %v", err)
	}
}

func TestSecret_Redaction(t *testing.T) {
	cfg := validConfig()
	cfg.Projector.Password = "JBMIAProjectorLink"

	if got := fmt.Sprint(cfg.Projector.Password); got != "[REDACTED]" {
		t.Errorf("Sprint(secret) = %q", got)
	}
	if got := fmt.Sprintf("%v", cfg.Projector); strings.Contains(got, "JBMIA") {
		t.Errorf("formatted config leaks password: %s", got)
	}

	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(b), "JBMIA") {
		t.Errorf("JSON leaks password: %s", b)
	}

	if got := Secret("").String(); got != "" {
		t.Errorf("empty Secret.String() = %q, want empty", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.DeviceID == "" {
		t.Error("defaultConfig should have non-empty Bridge.DeviceID")
	}
	if cfg.Projector.Port != 4352 {
		t.Errorf("defaultConfig Projector.Port = %d, want 4352", cfg.Projector.Port)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Projector.Host != "" {
		t.Error("defaultConfig must not guess a projector host")
	}
}
