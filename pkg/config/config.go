// Package config loads server configuration from the environment, with an
// optional YAML file overlay for deployments that ship a config file alongside
// the binary.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TransportKind selects how the server speaks to clients.
type TransportKind string

const (
	// TransportStdio frames newline-delimited JSON over stdin/stdout.
	TransportStdio TransportKind = "stdio"

	// TransportWebSocket serves the protocol over a WebSocket endpoint.
	TransportWebSocket TransportKind = "websocket"
)

// Config holds all server configuration.
type Config struct {
	Server  ServerConfig
	Pool    PoolConfig
	Browser BrowserConfig
	Logging LogConfig
}

// ServerConfig holds transport configuration.
type ServerConfig struct {
	Transport TransportKind `envconfig:"TRANSPORT" default:"stdio" yaml:"transport"`
	Host      string        `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	Port      string        `envconfig:"PORT" default:"8931" yaml:"port"`
}

// PoolConfig bounds the browser session pool.
type PoolConfig struct {
	// Capacity caps concurrently live sessions.
	Capacity int `envconfig:"POOL_CAPACITY" default:"4" yaml:"capacity"`

	// IdleTimeout is how long an idle session survives before the reaper
	// closes it.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT" default:"5m" yaml:"idle_timeout"`

	// ReapInterval is the cadence of the idle-session reaper.
	ReapInterval time.Duration `envconfig:"REAP_INTERVAL" default:"30s" yaml:"reap_interval"`

	// AcquireTimeout bounds how long a request waits for a free slot before
	// the pool reports exhaustion.
	AcquireTimeout time.Duration `envconfig:"ACQUIRE_TIMEOUT" default:"30s" yaml:"acquire_timeout"`

	// DefaultDeadline applies to requests that carry no deadline of their own.
	DefaultDeadline time.Duration `envconfig:"DEFAULT_DEADLINE" default:"60s" yaml:"default_deadline"`
}

// BrowserConfig holds browser engine configuration.
type BrowserConfig struct {
	Headless       bool     `envconfig:"HEADLESS" default:"true" yaml:"headless"`
	ViewportWidth  int      `envconfig:"VIEWPORT_WIDTH" default:"1280" yaml:"viewport_width"`
	ViewportHeight int      `envconfig:"VIEWPORT_HEIGHT" default:"720" yaml:"viewport_height"`
	InstallDrivers bool     `envconfig:"INSTALL_DRIVERS" default:"true" yaml:"install_drivers"`

	// AllowedURLs is the glob allowlist for navigation targets. Empty means
	// no restriction.
	AllowedURLs []string `envconfig:"ALLOWED_URLS" yaml:"allowed_urls"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// Load reads configuration from PARCELSCOUT_-prefixed environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("parcelscout", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads environment configuration and then overlays a YAML file.
// File values win over environment values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var overlay fileConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	overlay.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Pool.Capacity < 1 {
		return fmt.Errorf("pool capacity must be at least 1, got %d", c.Pool.Capacity)
	}
	if c.Pool.DefaultDeadline <= 0 {
		return fmt.Errorf("default deadline must be positive, got %s", c.Pool.DefaultDeadline)
	}
	switch c.Server.Transport {
	case TransportStdio, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q (must be %q or %q)",
			c.Server.Transport, TransportStdio, TransportWebSocket)
	}
	return nil
}

// BindAddress returns the host:port for network transports.
func (c *Config) BindAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// fileConfig mirrors Config with pointer fields so only keys present in the
// file override the environment.
type fileConfig struct {
	Server struct {
		Transport *TransportKind `yaml:"transport"`
		Host      *string        `yaml:"host"`
		Port      *string        `yaml:"port"`
	} `yaml:"server"`
	Pool struct {
		Capacity        *int           `yaml:"capacity"`
		IdleTimeout     *time.Duration `yaml:"idle_timeout"`
		ReapInterval    *time.Duration `yaml:"reap_interval"`
		AcquireTimeout  *time.Duration `yaml:"acquire_timeout"`
		DefaultDeadline *time.Duration `yaml:"default_deadline"`
	} `yaml:"pool"`
	Browser struct {
		Headless       *bool    `yaml:"headless"`
		ViewportWidth  *int     `yaml:"viewport_width"`
		ViewportHeight *int     `yaml:"viewport_height"`
		InstallDrivers *bool    `yaml:"install_drivers"`
		AllowedURLs    []string `yaml:"allowed_urls"`
	} `yaml:"browser"`
	Logging struct {
		Level       *string `yaml:"level"`
		Development *bool   `yaml:"development"`
	} `yaml:"logging"`
}

func (f *fileConfig) apply(cfg *Config) {
	if f.Server.Transport != nil {
		cfg.Server.Transport = *f.Server.Transport
	}
	if f.Server.Host != nil {
		cfg.Server.Host = *f.Server.Host
	}
	if f.Server.Port != nil {
		cfg.Server.Port = *f.Server.Port
	}
	if f.Pool.Capacity != nil {
		cfg.Pool.Capacity = *f.Pool.Capacity
	}
	if f.Pool.IdleTimeout != nil {
		cfg.Pool.IdleTimeout = *f.Pool.IdleTimeout
	}
	if f.Pool.ReapInterval != nil {
		cfg.Pool.ReapInterval = *f.Pool.ReapInterval
	}
	if f.Pool.AcquireTimeout != nil {
		cfg.Pool.AcquireTimeout = *f.Pool.AcquireTimeout
	}
	if f.Pool.DefaultDeadline != nil {
		cfg.Pool.DefaultDeadline = *f.Pool.DefaultDeadline
	}
	if f.Browser.Headless != nil {
		cfg.Browser.Headless = *f.Browser.Headless
	}
	if f.Browser.ViewportWidth != nil {
		cfg.Browser.ViewportWidth = *f.Browser.ViewportWidth
	}
	if f.Browser.ViewportHeight != nil {
		cfg.Browser.ViewportHeight = *f.Browser.ViewportHeight
	}
	if f.Browser.InstallDrivers != nil {
		cfg.Browser.InstallDrivers = *f.Browser.InstallDrivers
	}
	if len(f.Browser.AllowedURLs) > 0 {
		cfg.Browser.AllowedURLs = f.Browser.AllowedURLs
	}
	if f.Logging.Level != nil {
		cfg.Logging.Level = *f.Logging.Level
	}
	if f.Logging.Development != nil {
		cfg.Logging.Development = *f.Logging.Development
	}
}
