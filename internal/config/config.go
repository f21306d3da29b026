// Package config loads the sync layer configuration from a YAML file with
// environment variable overrides and optional hot reload.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// APIConfig holds the REST backend settings.
type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL" yaml:"base_url"`
	Timeout time.Duration `env:"API_TIMEOUT"  yaml:"timeout"`
}

// SetDefaults applies default values for APIConfig.
func (c *APIConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:4321"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// SocketConfig holds the push channel settings.
type SocketConfig struct {
	URL          string        `env:"SOCKET_URL"           yaml:"url"`
	InitialDelay time.Duration `env:"SOCKET_INITIAL_DELAY" yaml:"initial_delay"`
	MaxDelay     time.Duration `env:"SOCKET_MAX_DELAY"     yaml:"max_delay"`
	PollInterval time.Duration `env:"SOCKET_POLL_INTERVAL" yaml:"poll_interval"`
}

// SetDefaults applies default values for SocketConfig.
func (c *SocketConfig) SetDefaults() {
	if c.URL == "" {
		c.URL = "ws://localhost:4321/ws"
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 30 * time.Second
	}
}

// CacheConfig holds query cache tuning.
type CacheConfig struct {
	GCDelay  time.Duration `env:"CACHE_GC_DELAY" yaml:"gc_delay"`
	PageSize int           `env:"CACHE_PAGE_SIZE" yaml:"page_size"`
}

// SetDefaults applies default values for CacheConfig.
func (c *CacheConfig) SetDefaults() {
	if c.GCDelay == 0 {
		c.GCDelay = 5 * time.Minute
	}
	if c.PageSize == 0 {
		c.PageSize = 10
	}
}

// DevServerConfig holds the embedded simulation server settings.
type DevServerConfig struct {
	Enabled   bool   `env:"DEVSERVER_ENABLED"    yaml:"enabled"`
	Addr      string `env:"DEVSERVER_ADDR"       yaml:"addr"`
	JWTSecret string `env:"DEVSERVER_JWT_SECRET" yaml:"jwt_secret"`
	Username  string `env:"DEVSERVER_USERNAME"   yaml:"username"`
	Password  string `env:"DEVSERVER_PASSWORD"   yaml:"password"`
}

// SetDefaults applies default values for DevServerConfig.
func (c *DevServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":4321"
	}
	if c.Username == "" {
		c.Username = "admin"
	}
	if c.Password == "" {
		c.Password = "admin"
	}
}

// Config is the root configuration.
type Config struct {
	Debug     bool            `env:"DEBUG" yaml:"debug"`
	API       APIConfig       `yaml:"api"`
	Socket    SocketConfig    `yaml:"socket"`
	Cache     CacheConfig     `yaml:"cache"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.API.SetDefaults()
	c.Socket.SetDefaults()
	c.Cache.SetDefaults()
	c.DevServer.SetDefaults()
}

// Validate checks the loaded configuration for unusable values.
func (c *Config) Validate() error {
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("invalid api.base_url: %w", err)
	}
	u, err := url.Parse(c.Socket.URL)
	if err != nil {
		return fmt.Errorf("invalid socket.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("socket.url must use ws or wss scheme, got %q", u.Scheme)
	}
	if c.Socket.InitialDelay > c.Socket.MaxDelay {
		return fmt.Errorf("socket.initial_delay %s exceeds socket.max_delay %s",
			c.Socket.InitialDelay, c.Socket.MaxDelay)
	}
	if c.Cache.PageSize < 1 {
		return fmt.Errorf("cache.page_size must be positive, got %d", c.Cache.PageSize)
	}
	if c.DevServer.Enabled && c.DevServer.JWTSecret == "" {
		return fmt.Errorf("devserver.jwt_secret is required when the dev server is enabled")
	}
	return nil
}
