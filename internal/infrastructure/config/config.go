package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Lights.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Devices   DevicesConfig   `yaml:"devices"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Voice     VoiceConfig     `yaml:"voice"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// SyncFull sets synchronous=FULL so every committed schedule write
	// survives power loss, not just process crashes.
	SyncFull bool `yaml:"sync_full"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DevicesConfig describes where lights are configured and how they are driven.
type DevicesConfig struct {
	// File is a YAML device list (see device.LoadFile).
	File string `yaml:"file"`

	// LegacyFile is an optional "name - ip" text file. Names prefixed
	// with "$" are Kasa plugs, everything else is a telnet light.
	LegacyFile string `yaml:"legacy_file"`

	// CommandTimeout bounds a single device command, in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// Concurrency limits parallel device commands during bulk actions.
	// 0 selects the dispatcher default.
	Concurrency int `yaml:"concurrency"`

	TelnetPort int    `yaml:"telnet_port"`
	KasaBinary string `yaml:"kasa_binary"`

	// DevMode replaces every transport with the simulated one.
	DevMode bool `yaml:"dev_mode"`
}

// SchedulerConfig contains schedule evaluator settings.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`

	// TickInterval is how often schedules are evaluated, in seconds.
	// Must be between 1 and 60.
	TickInterval int `yaml:"tick_interval"`
}

// VoiceConfig controls spoken "light on" / "light off" commands.
type VoiceConfig struct {
	Enabled bool `yaml:"enabled"`

	// TranscriptFile is a text file a speech-to-text process appends to.
	// It is cleared after every recognised command.
	TranscriptFile string `yaml:"transcript_file"`

	// Timeout bounds the bulk action a phrase triggers, in seconds.
	Timeout int `yaml:"timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLIGHTS_SECTION_KEY
// For example: GRAYLIGHTS_DATABASE_PATH, GRAYLIGHTS_API_PORT
//
// Parameters:
//   - path: The YAML file, usually from GRAYLIGHTS_CONFIG
//
// Returns:
//   - *Config: A validated configuration
//   - error: If the file cannot be read or parsed, or Validate fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic Lights",
			Timezone: "Local",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylights.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylights",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5069,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Devices: DevicesConfig{
			File:           "configs/devices.yaml",
			CommandTimeout: 5,
			Concurrency:    8,
			TelnetPort:     23,
			KasaBinary:     "kasa",
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			TickInterval: 15,
		},
		Voice: VoiceConfig{
			Timeout: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLIGHTS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	if v := os.Getenv("GRAYLIGHTS_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}

	// Database
	if v := os.Getenv("GRAYLIGHTS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLIGHTS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLIGHTS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLIGHTS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLIGHTS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLIGHTS_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLIGHTS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Devices
	if v := os.Getenv("GRAYLIGHTS_DEVICES_FILE"); v != "" {
		cfg.Devices.File = v
	}
	if v := os.Getenv("GRAYLIGHTS_DEVICES_LEGACY_FILE"); v != "" {
		cfg.Devices.LegacyFile = v
	}
	if v := os.Getenv("GRAYLIGHTS_DEV_MODE"); v != "" {
		cfg.Devices.DevMode = v == "1" || strings.EqualFold(v, "true")
	}

	// Voice
	if v := os.Getenv("GRAYLIGHTS_VOICE_TRANSCRIPT_FILE"); v != "" {
		cfg.Voice.TranscriptFile = v
	}
}

// maxTickInterval is the coarsest allowed evaluator tick. Anything slower
// could skip a whole minute and miss a schedule.
const maxTickInterval = 60

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Devices.File == "" && c.Devices.LegacyFile == "" {
		errs = append(errs, "devices.file or devices.legacy_file is required")
	}
	if c.Devices.CommandTimeout < 1 {
		errs = append(errs, "devices.command_timeout must be at least 1 second")
	}
	if c.Devices.Concurrency < 0 {
		errs = append(errs, "devices.concurrency cannot be negative")
	}

	if c.Scheduler.TickInterval < 1 || c.Scheduler.TickInterval > maxTickInterval {
		errs = append(errs, "scheduler.tick_interval must be between 1 and 60 seconds")
	}

	if c.Voice.Enabled {
		if !c.MQTT.Enabled && c.Voice.TranscriptFile == "" {
			errs = append(errs, "voice needs mqtt enabled or voice.transcript_file")
		}
		if c.Voice.Timeout < 1 {
			errs = append(errs, "voice.timeout must be at least 1 second")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location resolves the site timezone used for schedule evaluation.
func (c *Config) Location() (*time.Location, error) {
	if c.Site.Timezone == "" || c.Site.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Site.Timezone)
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

// GetCommandTimeout returns the per-device command timeout.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Devices.CommandTimeout) * time.Second
}

// GetVoiceTimeout returns the bound on a voice-triggered bulk action.
func (c *Config) GetVoiceTimeout() time.Duration {
	return time.Duration(c.Voice.Timeout) * time.Second
}

// GetTickInterval returns the schedule evaluator tick interval.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickInterval) * time.Second
}
