package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Junction Cloud Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	API      APIConfig      `yaml:"api"`
	Registry RegistryConfig `yaml:"registry"`
	Broker   BrokerConfig   `yaml:"broker"`
	Session  SessionConfig  `yaml:"session"`
	Stream   StreamConfig   `yaml:"stream"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig identifies this control-plane instance.
type ServiceConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
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

// APITimeoutConfig contains HTTP timeout settings in seconds.
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

// RegistryConfig contains gateway registry liveness settings.
//
// HeartbeatTimeout is how long a gateway may go without a status report
// before it is demoted to STALE and excluded from selection. The liveness
// sweep runs at SweepInterval (defaults to HeartbeatTimeout/2 when zero).
// EvictionGrace is how long a STALE gateway is kept before removal.
type RegistryConfig struct {
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	EvictionGrace    time.Duration `yaml:"eviction_grace"`
}

// BrokerConfig contains access broker settings.
type BrokerConfig struct {
	// GrantLogRetention bounds the in-memory recent-grant log kept for
	// the admin status endpoint. Zero disables the log.
	GrantLogRetention int `yaml:"grant_log_retention"`
}

// UnmarshalYAML parses duration fields from strings like "90s" or "10m".
// Absent fields keep their defaults.
func (r *RegistryConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		HeartbeatTimeout string `yaml:"heartbeat_timeout"`
		SweepInterval    string `yaml:"sweep_interval"`
		EvictionGrace    string `yaml:"eviction_grace"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := parseDuration(raw.HeartbeatTimeout, "registry.heartbeat_timeout", &r.HeartbeatTimeout); err != nil {
		return err
	}
	if err := parseDuration(raw.SweepInterval, "registry.sweep_interval", &r.SweepInterval); err != nil {
		return err
	}
	return parseDuration(raw.EvictionGrace, "registry.eviction_grace", &r.EvictionGrace)
}

// SessionConfig contains web-bridge session settings.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxSessions   int           `yaml:"max_sessions"`
}

// UnmarshalYAML parses duration fields from strings like "15m".
// Absent fields keep their defaults.
func (s *SessionConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		IdleTimeout   string `yaml:"idle_timeout"`
		SweepInterval string `yaml:"sweep_interval"`
		MaxSessions   *int   `yaml:"max_sessions"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := parseDuration(raw.IdleTimeout, "session.idle_timeout", &s.IdleTimeout); err != nil {
		return err
	}
	if err := parseDuration(raw.SweepInterval, "session.sweep_interval", &s.SweepInterval); err != nil {
		return err
	}
	if raw.MaxSessions != nil {
		s.MaxSessions = *raw.MaxSessions
	}
	return nil
}

// StreamConfig contains event emitter settings.
//
// PingInterval and PongTimeout (seconds) apply to the WebSocket transport
// only; SSE liveness rides on the HeartbeatInterval events.
type StreamConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SendBufferSize    int           `yaml:"send_buffer_size"`
	MaxMessageSize    int           `yaml:"max_message_size"`
	PingInterval      int           `yaml:"ping_interval"`
	PongTimeout       int           `yaml:"pong_timeout"`
}

// UnmarshalYAML parses the heartbeat interval from strings like "30s".
// Absent fields keep their defaults.
func (s *StreamConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		HeartbeatInterval string `yaml:"heartbeat_interval"`
		SendBufferSize    *int   `yaml:"send_buffer_size"`
		MaxMessageSize    *int   `yaml:"max_message_size"`
		PingInterval      *int   `yaml:"ping_interval"`
		PongTimeout       *int   `yaml:"pong_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := parseDuration(raw.HeartbeatInterval, "stream.heartbeat_interval", &s.HeartbeatInterval); err != nil {
		return err
	}
	if raw.SendBufferSize != nil {
		s.SendBufferSize = *raw.SendBufferSize
	}
	if raw.MaxMessageSize != nil {
		s.MaxMessageSize = *raw.MaxMessageSize
	}
	if raw.PingInterval != nil {
		s.PingInterval = *raw.PingInterval
	}
	if raw.PongTimeout != nil {
		s.PongTimeout = *raw.PongTimeout
	}
	return nil
}

// parseDuration parses s into dst when non-empty.
func parseDuration(s, field string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", field, err)
	}
	*dst = d
	return nil
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MetricsConfig contains InfluxDB telemetry settings.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite settings for the gateway audit log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT verification settings.
// Junction verifies bearer tokens issued by the external auth service;
// it never issues tokens itself.
type JWTConfig struct {
	Secret string `yaml:"secret"`
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
// Environment variables follow the pattern: JUNCTION_SECTION_KEY
// For example: JUNCTION_DATABASE_PATH, JUNCTION_API_HOST
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
		Service: ServiceConfig{
			ID:   "junction-001",
			Name: "Junction Cloud Core",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Registry: RegistryConfig{
			HeartbeatTimeout: 90 * time.Second,
			EvictionGrace:    10 * time.Minute,
		},
		Broker: BrokerConfig{
			GrantLogRetention: 128,
		},
		Session: SessionConfig{
			IdleTimeout:   15 * time.Minute,
			SweepInterval: time.Minute,
		},
		Stream: StreamConfig{
			HeartbeatInterval: 30 * time.Second,
			SendBufferSize:    256,
			MaxMessageSize:    8192,
			PingInterval:      30,
			PongTimeout:       10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "junction-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/junction.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: JUNCTION_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JUNCTION_SERVICE_ID"); v != "" {
		cfg.Service.ID = v
	}

	if v := os.Getenv("JUNCTION_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("JUNCTION_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("JUNCTION_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("JUNCTION_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("JUNCTION_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("JUNCTION_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("JUNCTION_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Registry.HeartbeatTimeout <= 0 {
		errs = append(errs, "registry.heartbeat_timeout must be positive")
	}
	if c.Registry.EvictionGrace < 0 {
		errs = append(errs, "registry.eviction_grace must not be negative")
	}

	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, "session.idle_timeout must be positive")
	}

	if c.Stream.HeartbeatInterval <= 0 {
		errs = append(errs, "stream.heartbeat_interval must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Weak secrets would let anyone forge caller identities and reach
	// gateway access info, so enforce a minimum length here.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set JUNCTION_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RegistrySweepInterval returns the registry sweep interval, defaulting to
// half the heartbeat timeout when unset.
func (c *Config) RegistrySweepInterval() time.Duration {
	if c.Registry.SweepInterval > 0 {
		return c.Registry.SweepInterval
	}
	return c.Registry.HeartbeatTimeout / 2
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
