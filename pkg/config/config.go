package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultPacingMs is the default delay between sequential
	// submissions, in milliseconds.
	DefaultPacingMs = 3000

	// DefaultResultsDir is the default directory for run artifacts.
	DefaultResultsDir = "./results"

	// DefaultTimeout is the default remote request timeout.
	DefaultTimeout = "30s"

	// DefaultSampleSeed seeds the sanity-run sampler when none is given.
	DefaultSampleSeed = 1
)

// Config is the root configuration for claimrunner.
type Config struct {
	Global Global        `yaml:"global"`
	Runner Runner        `yaml:"runner"`
	Upload *UploadConfig `yaml:"upload,omitempty"`
	API    *APIConfig    `yaml:"api,omitempty"`
}

// Global contains global application settings.
type Global struct {
	LogLevel string `yaml:"log_level"`
}

// Runner contains test-execution settings.
type Runner struct {
	Target     Target `yaml:"target"`
	CatalogDir string `yaml:"catalog_dir"`
	ResultsDir string `yaml:"results_dir"`
	PacingMs   int    `yaml:"pacing_ms"`
	Sample     Sample `yaml:"sample,omitempty"`
}

// Target identifies the remote claims API under test.
type Target struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
}

// Sample configures reproducible sanity-run sampling.
type Sample struct {
	Seed int64 `yaml:"seed,omitempty"`
	Size int   `yaml:"size,omitempty"`
}

// UploadConfig contains artifact upload settings.
type UploadConfig struct {
	S3 *S3UploadConfig `yaml:"s3,omitempty"`
}

// S3UploadConfig contains S3-compatible storage settings.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty"`
	ACL             string `yaml:"acl,omitempty"`
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Runner.PacingMs == 0 {
		c.Runner.PacingMs = DefaultPacingMs
	}

	if c.Runner.ResultsDir == "" {
		c.Runner.ResultsDir = DefaultResultsDir
	}

	if c.Runner.Target.Timeout == "" {
		c.Runner.Target.Timeout = DefaultTimeout
	}

	if c.Runner.Sample.Seed == 0 {
		c.Runner.Sample.Seed = DefaultSampleSeed
	}

	if c.API != nil {
		c.API.applyDefaults()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Runner.Target.Endpoint == "" {
		return fmt.Errorf("runner.target.endpoint is required")
	}

	if c.Runner.CatalogDir == "" {
		return fmt.Errorf("runner.catalog_dir is required")
	}

	if c.Runner.PacingMs < 0 {
		return fmt.Errorf("runner.pacing_ms must not be negative")
	}

	if _, err := time.ParseDuration(c.Runner.Target.Timeout); err != nil {
		return fmt.Errorf("runner.target.timeout: %w", err)
	}

	if c.Runner.Sample.Size < 0 {
		return fmt.Errorf("runner.sample.size must not be negative")
	}

	if c.Upload != nil && c.Upload.S3 != nil && c.Upload.S3.Enabled {
		if c.Upload.S3.Bucket == "" {
			return fmt.Errorf("upload.s3.bucket is required when upload is enabled")
		}
	}

	if c.API != nil {
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	return nil
}

// Pacing returns the pacing interval as a duration.
func (c *Config) Pacing() time.Duration {
	return time.Duration(c.Runner.PacingMs) * time.Millisecond
}

// TargetTimeout returns the parsed remote request timeout.
func (c *Config) TargetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Runner.Target.Timeout)
	if err != nil {
		return 0
	}

	return d
}
