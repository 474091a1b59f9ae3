package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "PJLINK_BRIDGE_"

// Config is the root configuration of the PJLink bridge.
// It is loaded from YAML or TOML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge" toml:"bridge"`
	Projector ProjectorConfig `yaml:"projector" toml:"projector"`
	MQTT      MQTTConfig      `yaml:"mqtt" toml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb" toml:"influxdb"`
	API       APIConfig       `yaml:"api" toml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket" toml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	// DeviceID is used in MQTT topics and history tags.
	DeviceID string `yaml:"device_id" toml:"device_id"`
	Name     string `yaml:"name" toml:"name"`
}

// ProjectorConfig holds the projector connection and polling settings.
type ProjectorConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Password Secret `yaml:"password" toml:"password"`

	// Timeout bounds connect and each socket read or write.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`

	ReconnectDelay     time.Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval" toml:"status_poll_interval"`
	InfoPollInterval   time.Duration `yaml:"info_poll_interval" toml:"info_poll_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker" toml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth" toml:"auth"`
	QoS       int                 `yaml:"qos" toml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect" toml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" toml:"username"`
	Password Secret `yaml:"password" toml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay" toml:"max_delay"`
}

// DatabaseConfig contains SQLite settings for slot persistence.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Path        string `yaml:"path" toml:"path"`
	WALMode     bool   `yaml:"wal_mode" toml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout" toml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	URL           string `yaml:"url" toml:"url"`
	Token         Secret `yaml:"token" toml:"token"`
	Org           string `yaml:"org" toml:"org"`
	Bucket        string `yaml:"bucket" toml:"bucket"`
	BatchSize     int    `yaml:"batch_size" toml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval" toml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled" toml:"enabled"`
	Host     string           `yaml:"host" toml:"host"`
	Port     int              `yaml:"port" toml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts" toml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors" toml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read" toml:"read"`
	Write int `yaml:"write" toml:"write"`
	Idle  int `yaml:"idle" toml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path" toml:"path"`
	MaxMessageSize int    `yaml:"max_message_size" toml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval" toml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout" toml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// Secret is a credential that never appears in logs or JSON dumps.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// MarshalJSON redacts non-empty secrets.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Value returns the plain credential.
func (s Secret) Value() string {
	return string(s)
}

// Load reads configuration from a YAML or TOML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values; files ending in .toml are TOML, everything else YAML
//  3. Environment variables (PJLINK_BRIDGE_SECTION_KEY)
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			DeviceID: "projector-1",
			Name:     "Projector",
		},
		Projector: ProjectorConfig{
			Port:               4352,
			Timeout:            5 * time.Second,
			ReconnectDelay:     10 * time.Second,
			StatusPollInterval: 30 * time.Second,
			InfoPollInterval:   5 * time.Minute,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pjlink-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/pjlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	secret := func(key string, dst *Secret) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = Secret(v)
		}
	}
	num := func(key string, dst *int) error {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("DEVICE_ID", &cfg.Bridge.DeviceID)

	str("PROJECTOR_HOST", &cfg.Projector.Host)
	secret("PROJECTOR_PASSWORD", &cfg.Projector.Password)
	if err := num("PROJECTOR_PORT", &cfg.Projector.Port); err != nil {
		return err
	}

	str("MQTT_HOST", &cfg.MQTT.Broker.Host)
	str("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	secret("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)
	if err := num("MQTT_PORT", &cfg.MQTT.Broker.Port); err != nil {
		return err
	}

	str("DATABASE_PATH", &cfg.Database.Path)

	secret("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	str("API_HOST", &cfg.API.Host)
	if err := num("API_PORT", &cfg.API.Port); err != nil {
		return err
	}

	str("LOG_LEVEL", &cfg.Logging.Level)
	return nil
}

// PJLink limits passwords to 32 characters.
const maxProjectorPassword = 32

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	// Bridge
	if c.Bridge.DeviceID == "" {
		errs = append(errs, "bridge.device_id is required")
	} else if strings.ContainsAny(c.Bridge.DeviceID, "/+# ") {
		errs = append(errs, "bridge.device_id must not contain '/', '+', '#' or spaces")
	}

	// Projector
	if c.Projector.Host == "" {
		errs = append(errs, "projector.host is required (set PJLINK_BRIDGE_PROJECTOR_HOST)")
	}
	if c.Projector.Port < 1 || c.Projector.Port > 65535 {
		errs = append(errs, "projector.port must be between 1 and 65535")
	}
	if len(c.Projector.Password) > maxProjectorPassword {
		errs = append(errs, "projector.password must be at most 32 characters")
	}
	if c.Projector.Timeout <= 0 {
		errs = append(errs, "projector.timeout must be positive")
	}
	if c.Projector.ReconnectDelay <= 0 || c.Projector.StatusPollInterval <= 0 || c.Projector.InfoPollInterval <= 0 {
		errs = append(errs, "projector intervals must be positive")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}

	// Database
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
