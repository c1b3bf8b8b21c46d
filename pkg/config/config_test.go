package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
runner:
  target:
    endpoint: https://claims.example.test
  catalog_dir: ./catalog
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultPacingMs, cfg.Runner.PacingMs)
	assert.Equal(t, DefaultResultsDir, cfg.Runner.ResultsDir)
	assert.Equal(t, DefaultTimeout, cfg.Runner.Target.Timeout)
	assert.Equal(t, int64(DefaultSampleSeed), cfg.Runner.Sample.Seed)
	assert.Equal(t, 3*time.Second, cfg.Pacing())
	assert.Equal(t, 30*time.Second, cfg.TargetTimeout())

	require.NoError(t, cfg.Validate())
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
global:
  log_level: debug
runner:
  target:
    endpoint: https://claims.example.test
    token: secret-token
    timeout: 10s
  catalog_dir: ./catalog
  results_dir: /tmp/results
  pacing_ms: 500
  sample:
    seed: 42
    size: 5
upload:
  s3:
    enabled: true
    bucket: claim-results
    region: eu-west-1
api:
  server:
    listen: ":9090"
    rate_limit:
      enabled: true
  auth:
    anonymous_read: true
    basic:
      enabled: true
      users:
        - username: reviewer
          password: hunter2
  database:
    driver: sqlite
  refresh:
    enabled: true
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing())
	assert.Equal(t, int64(42), cfg.Runner.Sample.Seed)
	assert.Equal(t, "claim-results", cfg.Upload.S3.Bucket)

	require.NotNil(t, cfg.API)
	assert.Equal(t, ":9090", cfg.API.Server.Listen)
	assert.Equal(t, 120, cfg.API.Server.RateLimit.RequestsPerMinute)
	assert.Equal(t, DefaultSQLitePath, cfg.API.Database.SQLite.Path)
	assert.Equal(t, DefaultRefreshInterval, cfg.API.Refresh.Interval)
	assert.Equal(t, DefaultRefreshConcurrency, cfg.API.Refresh.Concurrency)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Runner.Target.Endpoint = "" },
			wantErr: "endpoint is required",
		},
		{
			name:    "missing catalog dir",
			mutate:  func(c *Config) { c.Runner.CatalogDir = "" },
			wantErr: "catalog_dir is required",
		},
		{
			name:    "negative pacing",
			mutate:  func(c *Config) { c.Runner.PacingMs = -1 },
			wantErr: "pacing_ms",
		},
		{
			name:    "bad timeout",
			mutate:  func(c *Config) { c.Runner.Target.Timeout = "soon" },
			wantErr: "timeout",
		},
		{
			name: "enabled upload without bucket",
			mutate: func(c *Config) {
				c.Upload = &UploadConfig{S3: &S3UploadConfig{Enabled: true}}
			},
			wantErr: "bucket is required",
		},
		{
			name: "unknown database driver",
			mutate: func(c *Config) {
				c.API = &APIConfig{Database: DatabaseConfig{Driver: "oracle"}}
			},
			wantErr: "unsupported database driver",
		},
		{
			name: "basic auth without users",
			mutate: func(c *Config) {
				c.API = &APIConfig{
					Database: DatabaseConfig{Driver: "sqlite"},
					Auth: APIAuthConfig{
						Basic: BasicAuthConfig{Enabled: true},
					},
				}
			},
			wantErr: "users is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Runner: Runner{
					Target: Target{
						Endpoint: "https://claims.example.test",
						Timeout:  "30s",
					},
					CatalogDir: "./catalog",
					PacingMs:   DefaultPacingMs,
				},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
