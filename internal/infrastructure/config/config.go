package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for tourney-core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Security SecurityConfig `yaml:"security"`
	Sessions SessionsConfig `yaml:"sessions"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig identifies this deployment.
type ServerConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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
// Credentials are always allowed because the session travels in a cookie,
// so an explicit origin list should be configured in production.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// SecurityConfig contains authentication and request-hardening settings.
type SecurityConfig struct {
	// ServerSecret is the server-wide half of every session signing key.
	// The other half is the owning user's password hash.
	ServerSecret string          `yaml:"server_secret"`
	Cookies      CookieConfig    `yaml:"cookies"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	Bootstrap    BootstrapConfig `yaml:"bootstrap"`
}

// CookieConfig controls session and CSRF cookie attributes.
type CookieConfig struct {
	// SecureAlways forces the Secure attribute even when the request did not
	// arrive over TLS (e.g. behind a proxy that strips X-Forwarded-Proto).
	SecureAlways bool `yaml:"secure_always"`
}

// RateLimitConfig contains rate limiting settings for the credential endpoints.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// Login is a ulule/limiter formatted rate, e.g. "10-M" (10 per minute).
	Login string `yaml:"login"`
}

// BootstrapConfig seeds the first administrator on an empty database.
type BootstrapConfig struct {
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// SessionsConfig selects the session store backend and housekeeping cadence.
type SessionsConfig struct {
	// Backend is "sqlite" (default, same database as users) or "bbolt".
	Backend   string `yaml:"backend"`
	BboltPath string `yaml:"bbolt_path"`
	// SweepInterval is the period in seconds of the background expiry sweep.
	// Zero disables it; expired sessions are then only purged at login.
	SweepInterval int `yaml:"sweep_interval"`
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
	// Output is "stdout", "stderr" or "file".
	Output string `yaml:"output"`
	// File is the log file path when Output is "file".
	File string `yaml:"file"`
}

// Session store backends.
const (
	SessionBackendSQLite = "sqlite"
	SessionBackendBbolt  = "bbolt"
)

// minServerSecretLength is the minimum accepted length of security.server_secret.
const minServerSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TOURNEY_SECTION_KEY
// For example: TOURNEY_DATABASE_PATH, TOURNEY_API_PORT
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
		Server: ServerConfig{
			ID:   "tourney-001",
			Name: "Tourney",
		},
		Database: DatabaseConfig{
			Path:        "./data/tourney.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				Login:   "10-M",
			},
		},
		Sessions: SessionsConfig{
			Backend:       SessionBackendSQLite,
			BboltPath:     "./data/sessions.db",
			SweepInterval: 3600,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "tourney-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TOURNEY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("TOURNEY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("TOURNEY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("TOURNEY_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Sessions
	if v := os.Getenv("TOURNEY_SESSIONS_BACKEND"); v != "" {
		cfg.Sessions.Backend = v
	}

	// MQTT
	if v := os.Getenv("TOURNEY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TOURNEY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TOURNEY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("TOURNEY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security (IMPORTANT: always set the secret from the environment in production)
	if v := os.Getenv("TOURNEY_SERVER_SECRET"); v != "" {
		cfg.Security.ServerSecret = v
	}
	if v := os.Getenv("TOURNEY_BOOTSTRAP_ADMIN_EMAIL"); v != "" {
		cfg.Security.Bootstrap.AdminEmail = v
	}
	if v := os.Getenv("TOURNEY_BOOTSTRAP_ADMIN_PASSWORD"); v != "" {
		cfg.Security.Bootstrap.AdminPassword = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.ID == "" {
		errs = append(errs, "server.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	// A short secret lets an attacker who learns a password hash brute-force
	// the rest of the signing key.
	if c.Security.ServerSecret == "" {
		errs = append(errs, "security.server_secret is required (set TOURNEY_SERVER_SECRET environment variable)")
	} else if len(c.Security.ServerSecret) < minServerSecretLength {
		errs = append(errs, "security.server_secret must be at least 32 characters")
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.Login == "" {
		errs = append(errs, "security.rate_limit.login is required when rate limiting is enabled")
	}

	switch c.Sessions.Backend {
	case SessionBackendSQLite:
	case SessionBackendBbolt:
		if c.Sessions.BboltPath == "" {
			errs = append(errs, "sessions.bbolt_path is required for the bbolt backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("sessions.backend must be %q or %q", SessionBackendSQLite, SessionBackendBbolt))
	}
	if c.Sessions.SweepInterval < 0 {
		errs = append(errs, "sessions.sweep_interval must not be negative")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when InfluxDB is enabled")
	}

	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File == "" {
		errs = append(errs, "logging.file is required when logging.output is file")
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

// GetSweepInterval returns the session expiry sweep period, zero when disabled.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Sessions.SweepInterval) * time.Second
}
