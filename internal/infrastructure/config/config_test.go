package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
speaker:
  address: "AA:BB:CC:DD:EE:FF"
  allow_pairing: true
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
  topic_prefix: "home/stanmore"
  retain: true
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Speaker.Address != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("Speaker.Address = %q, want %q", cfg.Speaker.Address, "AA:BB:CC:DD:EE:FF")
	}
	if !cfg.Speaker.AllowPairing {
		t.Error("Speaker.AllowPairing = false, want true")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.TopicPrefix != "home/stanmore" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "home/stanmore")
	}
	if !cfg.MQTT.Retain {
		t.Error("MQTT.Retain = false, want true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
speaker:
  address: "AA:BB:CC:DD:EE:FF"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default MQTT port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.TopicPrefix != "marshall/stanmore2" {
		t.Errorf("default topic prefix = %q, want marshall/stanmore2", cfg.MQTT.TopicPrefix)
	}
	if cfg.Speaker.AllowPairing {
		t.Error("AllowPairing should default to false")
	}
	if cfg.Database.Enabled {
		t.Error("Database.Enabled should default to false")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STANMORE_SPEAKER_ADDRESS", "11:22:33:44:55:66")
	t.Setenv("STANMORE_MQTT_HOST", "env-broker")
	t.Setenv("STANMORE_MQTT_PORT", "8883")
	t.Setenv("STANMORE_MQTT_TOPIC_PREFIX", "env/prefix")
	t.Setenv("STANMORE_MQTT_RETAIN", "true")
	t.Setenv("STANMORE_SPEAKER_ALLOW_PAIRING", "yes")

	content := `
speaker:
  address: "AA:BB:CC:DD:EE:FF"
mqtt:
  broker:
    host: "file-broker"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Speaker.Address != "11:22:33:44:55:66" {
		t.Errorf("Speaker.Address = %q, want env override", cfg.Speaker.Address)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env-broker", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if !cfg.MQTT.Retain {
		t.Error("MQTT.Retain = false, want env override true")
	}
	if !cfg.Speaker.AllowPairing {
		t.Error("Speaker.AllowPairing = false, want env override true")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Speaker.Address = "AA:BB:CC:DD:EE:FF"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing speaker address",
			mutate:  func(c *Config) { c.Speaker.Address = "" },
			wantErr: true,
		},
		{
			name:    "malformed speaker address",
			mutate:  func(c *Config) { c.Speaker.Address = "not-a-mac" },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "topic prefix with wildcard",
			mutate:  func(c *Config) { c.MQTT.TopicPrefix = "home/#" },
			wantErr: true,
		},
		{
			name:    "topic prefix with trailing slash",
			mutate:  func(c *Config) { c.MQTT.TopicPrefix = "home/stanmore/" },
			wantErr: true,
		},
		{
			name:    "empty topic prefix",
			mutate:  func(c *Config) { c.MQTT.TopicPrefix = "" },
			wantErr: true,
		},
		{
			name:    "invalid broker port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 0 },
			wantErr: true,
		},
		{
			name: "history enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name: "api enabled with bad port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
