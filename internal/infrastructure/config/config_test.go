package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bridge:
  juicebox_id: "0910000000000000000000000000"
  juicebox_host: "192.168.1.50"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
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

	if cfg.Bridge.JuiceboxID != "0910000000000000000000000000" {
		t.Errorf("Bridge.JuiceboxID = %q, want %q", cfg.Bridge.JuiceboxID, "0910000000000000000000000000")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
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
  juicebox_host: ""
database:
  path: "/tmp/test.db"
mqtt:
  qos: 5
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for invalid QoS, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config, enelx configured",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/juicebridge.db"},
				MQTT:     MQTTConfig{QoS: 1},
				Bridge:   BridgeConfig{EnelXIP: "54.243.65.53:8047"},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			config: &Config{
				Database: DatabaseConfig{Path: ""},
				MQTT:     MQTTConfig{QoS: 1},
				Bridge:   BridgeConfig{EnelXIP: "54.243.65.53:8047"},
			},
			wantErr: true,
		},
		{
			name: "invalid QoS",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/juicebridge.db"},
				MQTT:     MQTTConfig{QoS: 3},
				Bridge:   BridgeConfig{EnelXIP: "54.243.65.53:8047"},
			},
			wantErr: true,
		},
		{
			name: "update_udpc requires juicebox_host",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/juicebridge.db"},
				MQTT:     MQTTConfig{QoS: 1},
				Bridge:   BridgeConfig{UpdateUDPC: true, JuiceboxHost: ""},
			},
			wantErr: true,
		},
		{
			name: "no enelx_ip requires juicebox_host",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/juicebridge.db"},
				MQTT:     MQTTConfig{QoS: 1},
				Bridge:   BridgeConfig{JuiceboxHost: ""},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("JUICEBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("JUICEBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("JUICEBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("JUICEBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("JUICEBRIDGE_JUICEBOX_HOST", "192.168.1.99")
	t.Setenv("JUICEBRIDGE_INFLUXDB_TOKEN", "secret-token")

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

	if cfg.Bridge.JuiceboxHost != "192.168.1.99" {
		t.Errorf("Bridge.JuiceboxHost = %q, want %q", cfg.Bridge.JuiceboxHost, "192.168.1.99")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.Bridge.TelnetPort != 2000 {
		t.Errorf("defaultConfig Bridge.TelnetPort = %d, want 2000", cfg.Bridge.TelnetPort)
	}
}
