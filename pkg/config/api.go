package config

import "fmt"

const (
	// DefaultAPIListen is the default API listen address.
	DefaultAPIListen = ":8080"

	// DefaultSQLitePath is the default run-history database path.
	DefaultSQLitePath = "./claimrunner.db"

	// DefaultRefreshInterval is how often the background refresher
	// sweeps non-terminal outcomes.
	DefaultRefreshInterval = "5m"

	// DefaultRefreshConcurrency bounds parallel status fetches in one
	// refresh sweep. Sweeps act on already-completed outcomes only, so
	// this does not conflict with run pacing.
	DefaultRefreshConcurrency = 4
)

// APIConfig contains all results API server configuration.
type APIConfig struct {
	Server   APIServerConfig  `yaml:"server"`
	Auth     APIAuthConfig    `yaml:"auth"`
	Database DatabaseConfig   `yaml:"database"`
	Refresh  APIRefreshConfig `yaml:"refresh,omitempty"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen      string          `yaml:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute,omitempty"`
}

// APIAuthConfig contains authentication settings.
type APIAuthConfig struct {
	AnonymousRead bool            `yaml:"anonymous_read"`
	Basic         BasicAuthConfig `yaml:"basic,omitempty"`
}

// BasicAuthConfig configures username/password authentication.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty"`
}

// BasicAuthUser defines a basic auth user from config.
type BasicAuthUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIRefreshConfig configures the background outcome refresher.
type APIRefreshConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Interval    string `yaml:"interval,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
}

// applyDefaults sets default values for unspecified API options.
func (c *APIConfig) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultAPIListen
	}

	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute == 0 {
		c.Server.RateLimit.RequestsPerMinute = 120
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Refresh.Enabled {
		if c.Refresh.Interval == "" {
			c.Refresh.Interval = DefaultRefreshInterval
		}

		if c.Refresh.Concurrency == 0 {
			c.Refresh.Concurrency = DefaultRefreshConcurrency
		}
	}
}

// Validate checks the API configuration for errors.
func (c *APIConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Auth.Basic.Enabled && len(c.Auth.Basic.Users) == 0 {
		return fmt.Errorf("auth.basic.users is required when basic auth is enabled")
	}

	for i, u := range c.Auth.Basic.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("auth.basic.users[%d]: username and password are required", i)
		}
	}

	if c.Refresh.Concurrency < 0 {
		return fmt.Errorf("refresh.concurrency must not be negative")
	}

	return nil
}
