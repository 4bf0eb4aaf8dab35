package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
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
	configPath := writeConfig(t, `
site:
  id: "test-site"
  timezone: "UTC"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
devices:
  file: "devices.yaml"
  command_timeout: 3
scheduler:
  tick_interval: 10
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if got := cfg.GetCommandTimeout(); got != 3*time.Second {
		t.Errorf("GetCommandTimeout() = %v, want 3s", got)
	}
	if got := cfg.GetTickInterval(); got != 10*time.Second {
		t.Errorf("GetTickInterval() = %v, want 10s", got)
	}
	// Unset fields keep their defaults.
	if cfg.Devices.TelnetPort != 23 {
		t.Errorf("Devices.TelnetPort = %d, want 23", cfg.Devices.TelnetPort)
	}
	if cfg.Devices.KasaBinary != "kasa" {
		t.Errorf("Devices.KasaBinary = %q, want kasa", cfg.Devices.KasaBinary)
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

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
site:
  id: ""
`))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRAYLIGHTS_DATABASE_PATH", "/env/lights.db")
	t.Setenv("GRAYLIGHTS_API_PORT", "9090")
	t.Setenv("GRAYLIGHTS_DEV_MODE", "true")
	t.Setenv("GRAYLIGHTS_DEVICES_LEGACY_FILE", "config.txt")

	cfg, err := Load(writeConfig(t, "site:\n  id: x\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/env/lights.db" {
		t.Errorf("Database.Path = %q, want /env/lights.db", cfg.Database.Path)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if !cfg.Devices.DevMode {
		t.Error("Devices.DevMode = false, want true")
	}
	if cfg.Devices.LegacyFile != "config.txt" {
		t.Errorf("Devices.LegacyFile = %q, want config.txt", cfg.Devices.LegacyFile)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Site.Timezone = "Mars/Olympus" },
			wantErr: "site.timezone",
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name: "no device source",
			mutate: func(c *Config) {
				c.Devices.File = ""
				c.Devices.LegacyFile = ""
			},
			wantErr: "devices.file",
		},
		{
			name:    "zero command timeout",
			mutate:  func(c *Config) { c.Devices.CommandTimeout = 0 },
			wantErr: "devices.command_timeout",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Devices.Concurrency = -1 },
			wantErr: "devices.concurrency",
		},
		{
			name:    "tick slower than a minute",
			mutate:  func(c *Config) { c.Scheduler.TickInterval = 61 },
			wantErr: "scheduler.tick_interval",
		},
		{
			name:    "voice without a source",
			mutate:  func(c *Config) { c.Voice.Enabled = true },
			wantErr: "voice needs mqtt",
		},
		{
			name: "voice from transcript file",
			mutate: func(c *Config) {
				c.Voice.Enabled = true
				c.Voice.TranscriptFile = "/tmp/transcription.txt"
			},
		},
		{
			name: "voice with zero timeout",
			mutate: func(c *Config) {
				c.Voice.Enabled = true
				c.MQTT.Enabled = true
				c.Voice.Timeout = 0
			},
			wantErr: "voice.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := defaultConfig()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("Location() = %v, %v; want time.Local", loc, err)
	}

	cfg.Site.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("Location() = %s, want UTC", loc)
	}
}
