// Package config handles configuration loading and validation for huddle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Duplicate-user policies applied when the same user joins a session from a
// second connection.
const (
	DuplicateAllow   = "allow"   // keep both entries, one per connection
	DuplicateReplace = "replace" // evict the older connection's entry
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Debug   DebugConfig   `yaml:"debug"`
	DataDir string        `yaml:"-"` // set by caller, not from config file
}

// ServerConfig controls the HTTP listener and the websocket gateway.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // glob patterns; empty allows all
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	SendBuffer      int           `yaml:"send_buffer"` // queued outbound frames per connection
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongWait        time.Duration `yaml:"pong_wait"`
	WriteWait       time.Duration `yaml:"write_wait"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SessionConfig controls collaboration session housekeeping.
type SessionConfig struct {
	PresenceTimeout time.Duration `yaml:"presence_timeout"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	DuplicateUsers  string        `yaml:"duplicate_users"`
}

// AuthConfig configures the identity provider.
type AuthConfig struct {
	// Required rejects websocket upgrades without a valid bearer token.
	Required  bool   `yaml:"required"`
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

// StorageConfig selects where comments, suggestions and versions live.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`         // sqlite file, defaults to <data-dir>/huddle.db
	BusyTimeout int    `yaml:"busy_timeout"` // milliseconds
}

// DebugConfig enables debugging endpoints.
type DebugConfig struct {
	Pprof bool `yaml:"pprof"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			SendBuffer:      256,
			MaxMessageBytes: 1 << 20,
			PingInterval:    25 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			PresenceTimeout: 45 * time.Second,
			SweepInterval:   15 * time.Second,
			DuplicateUsers:  DuplicateAllow,
		},
		Storage: StorageConfig{
			Driver:      StorageMemory,
			BusyTimeout: 5000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ReadBufferSize == 0 {
		c.Server.ReadBufferSize = defaults.Server.ReadBufferSize
	}
	if c.Server.WriteBufferSize == 0 {
		c.Server.WriteBufferSize = defaults.Server.WriteBufferSize
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = defaults.Server.SendBuffer
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = defaults.Server.MaxMessageBytes
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = defaults.Server.PingInterval
	}
	if c.Server.PongWait == 0 {
		c.Server.PongWait = defaults.Server.PongWait
	}
	if c.Server.WriteWait == 0 {
		c.Server.WriteWait = defaults.Server.WriteWait
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Session.PresenceTimeout == 0 {
		c.Session.PresenceTimeout = defaults.Session.PresenceTimeout
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = defaults.Session.SweepInterval
	}
	if c.Session.DuplicateUsers == "" {
		c.Session.DuplicateUsers = defaults.Session.DuplicateUsers
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	if c.Storage.BusyTimeout == 0 {
		c.Storage.BusyTimeout = defaults.Storage.BusyTimeout
	}
	if c.Storage.Driver == StorageSQLite && c.Storage.Path == "" && c.DataDir != "" {
		c.Storage.Path = c.DatabaseFile()
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Server.SendBuffer < 1 {
		return fmt.Errorf("server.send_buffer must be at least 1")
	}

	if c.Server.PingInterval >= c.Server.PongWait {
		return fmt.Errorf("server.ping_interval (%s) must be shorter than server.pong_wait (%s)",
			c.Server.PingInterval, c.Server.PongWait)
	}

	// Presence counts application frames, not pongs. Silent clients must go
	// inactive before pong_wait drops them.
	if c.Session.PresenceTimeout <= 0 || c.Session.PresenceTimeout >= c.Server.PongWait {
		return fmt.Errorf("session.presence_timeout (%s) must be positive and shorter than server.pong_wait (%s)",
			c.Session.PresenceTimeout, c.Server.PongWait)
	}

	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive")
	}

	switch c.Session.DuplicateUsers {
	case DuplicateAllow, DuplicateReplace:
	default:
		return fmt.Errorf("session.duplicate_users must be %q or %q, got %q",
			DuplicateAllow, DuplicateReplace, c.Session.DuplicateUsers)
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q",
			StorageMemory, StorageSQLite, c.Storage.Driver)
	}

	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.required is set")
	}

	return nil
}

// DatabaseFile returns the default path of the sqlite database.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "huddle.db")
}
