package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the bridge.
// All configuration is loaded from YAML and can be overridden by environment
// variables, and those in turn by CLI flags (see cmd/juicebridge).
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig identifies the device this bridge instance serves and the
// network endpoints it mediates between.
type BridgeConfig struct {
	// JuiceboxID identifies this device on the entity bus. Name is stored
	// but not read; entity names are built from JuiceboxID.
	JuiceboxID string `yaml:"juicebox_id"`
	Name       string `yaml:"name"`

	// JuiceboxHost is the admin-channel target. Required if UpdateUDPC is
	// set or EnelXIP is unspecified.
	JuiceboxHost string `yaml:"juicebox_host"`
	TelnetPort   int    `yaml:"telnet_port"`
	TelnetTimeout int   `yaml:"telnet_timeout"` // seconds

	// UpdateUDPC enables the destination updater.
	UpdateUDPC bool `yaml:"update_udpc"`

	// JPPHost is the externally-visible bridge host, used by the
	// destination updater when the bridge sits behind NAT.
	JPPHost string `yaml:"jpp_host"`

	// LocalIP/LocalPort is the relay's own UDP bind address.
	LocalIP   string `yaml:"local_ip"`
	LocalPort int    `yaml:"local_port"`

	// EnelXIP is the vendor cloud endpoint, "host:port". Empty means the
	// bridge never forwards to a cloud.
	EnelXIP string `yaml:"enelx_ip"`

	// IgnoreEnelx drops cloud forwarding and synthesizes commands locally.
	IgnoreEnelx bool `yaml:"ignore_enelx"`

	// Experimental is stored but not read: the raw-echo and raw-send
	// diagnostic entities are always published.
	Experimental bool `yaml:"experimental"`

	// ConfigLoc is the directory holding the persisted key/value store
	// (juicepassproxy.<ext>).
	ConfigLoc string `yaml:"config_loc"`
}

// DatabaseConfig contains SQLite database settings, used by the telemetry
// history store and audit log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker          MQTTBrokerConfig    `yaml:"broker"`
	Auth            MQTTAuthConfig      `yaml:"auth"`
	QoS             int                 `yaml:"qos"`
	Reconnect       MQTTReconnectConfig `yaml:"reconnect"`
	DiscoveryPrefix string              `yaml:"discovery_prefix"`
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

// InfluxDBConfig contains InfluxDB connection settings. Optional: when
// Enabled is false, the time-series sink is never connected.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern JUICEBRIDGE_SECTION_KEY for the
// database, MQTT and InfluxDB keys, and JUICEBRIDGE_KEY for bridge keys.
// For example: JUICEBRIDGE_MQTT_HOST, JUICEBRIDGE_JUICEBOX_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults, for callers composing
// configuration from CLI flags and environment alone with no YAML file
// (see cmd/juicebridge, where the config file is optional).
func Default() *Config {
	return defaultConfig()
}

// ApplyEnvOverrides applies JUICEBRIDGE_* environment variable overrides
// to cfg in place. Exported for callers that build a Config outside of
// Load (see cmd/juicebridge's no-config-file path).
func ApplyEnvOverrides(cfg *Config) {
	applyEnvOverrides(cfg)
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			TelnetPort:    2000,
			TelnetTimeout: 30,
			LocalIP:       "0.0.0.0",
			LocalPort:     8047,
			ConfigLoc:     "./data",
		},
		Database: DatabaseConfig{
			Path:        "./data/juicebridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "juicebridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			DiscoveryPrefix: "homeassistant",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern
// JUICEBRIDGE_SECTION_KEY, except bridge keys, which omit the section
// (JUICEBRIDGE_JUICEBOX_HOST).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JUICEBRIDGE_JUICEBOX_HOST"); v != "" {
		cfg.Bridge.JuiceboxHost = v
	}
	if v := os.Getenv("JUICEBRIDGE_JUICEBOX_ID"); v != "" {
		cfg.Bridge.JuiceboxID = v
	}
	if v := os.Getenv("JUICEBRIDGE_ENELX_IP"); v != "" {
		cfg.Bridge.EnelXIP = v
	}
	if v := os.Getenv("JUICEBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("JUICEBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("JUICEBRIDGE_MQTT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = n
		}
	}
	if v := os.Getenv("JUICEBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("JUICEBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("JUICEBRIDGE_MQTT_DISCOVERY_PREFIX"); v != "" {
		cfg.MQTT.DiscoveryPrefix = v
	}

	if v := os.Getenv("JUICEBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if (c.Bridge.UpdateUDPC || c.Bridge.EnelXIP == "") && c.Bridge.JuiceboxHost == "" {
		errs = append(errs, "bridge.juicebox_host is required when update_udpc is enabled or enelx_ip is unset")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
