package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leadkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FileAndExpansion(t *testing.T) {
	t.Setenv("TEST_LEADKIT_DSN", "postgres://crm@db/crm")
	path := writeFile(t, `
server:
  port: 9090
  shutdown_timeout: 5s
  function_name: api
  cors:
    origins: ["https://app.example.com"]
    subdomain_suffix: example.com
database:
  driver: postgres
  dsn: ${TEST_LEADKIT_DSN}
ratelimit:
  backend: redis
  fail_open: false
  redis:
    addr: redis:6379
    db: 2
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "api", cfg.Server.FunctionName)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORS.Origins)
	assert.Equal(t, "example.com", cfg.Server.CORS.SubdomainSuffix)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://crm@db/crm", cfg.Database.DSN)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.False(t, cfg.RateLimit.FailOpen)
	assert.Equal(t, "redis:6379", cfg.RateLimit.Redis.Addr)
	assert.Equal(t, 2, cfg.RateLimit.Redis.DB)

	// Unset keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Server.TrustProxyHeaders)
	assert.Equal(t, 1024, cfg.Audit.BufferSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "server:\n  port: 9090\n")
	t.Setenv("LEADKIT_SERVER_PORT", "7070")
	t.Setenv("LEADKIT_AUTH_ADMIN_SECRET", "s3cret")
	t.Setenv("LEADKIT_AUDIT_RETENTION", "72h")
	t.Setenv("LEADKIT_SERVER_DEBUG", "true")
	t.Setenv("LEADKIT_SERVER_TRUST_PROXY_HEADERS", "false")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.AdminSecret)
	assert.Equal(t, 72*time.Hour, cfg.Audit.Retention)
	assert.True(t, cfg.Server.Debug)
	assert.False(t, cfg.Server.TrustProxyHeaders)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"negative ip limit", func(c *Config) { c.Server.IPRateLimit = -1 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }},
		{"unknown backend", func(c *Config) { c.RateLimit.Backend = "memcached" }},
		{"redis without addr", func(c *Config) { c.RateLimit.Backend = "redis"; c.RateLimit.Redis.Addr = "" }},
		{"zero audit buffer", func(c *Config) { c.Audit.BufferSize = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadkit.yaml")
	require.NoError(t, WriteDefault(path, false))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
	assert.Equal(t, Default().Audit.Retention, cfg.Audit.Retention)

	assert.Error(t, WriteDefault(path, false))
	assert.NoError(t, WriteDefault(path, true))
}
