// Package config defines the gateway configuration file and loads it
// together with LEADKIT_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LEADKIT_SERVER_PORT.
const EnvPrefix = "LEADKIT"

// DefaultFileName is looked up in the working directory and ~/.leadkit.
const DefaultFileName = "leadkit.yaml"

// Config is the top-level configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`

	// File is the configuration file that was read, if any.
	File string `yaml:"-" mapstructure:"-"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host              string        `yaml:"host" mapstructure:"host"`
	Port              int           `yaml:"port" mapstructure:"port"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	Debug             bool          `yaml:"debug" mapstructure:"debug"`
	FunctionName      string        `yaml:"function_name" mapstructure:"function_name"`
	IPRateLimit       int           `yaml:"ip_rate_limit" mapstructure:"ip_rate_limit"`
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
	CORS              CORSConfig    `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	Origins         []string `yaml:"origins" mapstructure:"origins"`
	SubdomainSuffix string   `yaml:"subdomain_suffix" mapstructure:"subdomain_suffix"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// RateLimitConfig selects where per-key counters live.
type RateLimitConfig struct {
	Backend          string        `yaml:"backend" mapstructure:"backend"`
	FailOpen         bool          `yaml:"fail_open" mapstructure:"fail_open"`
	Redis            RedisConfig   `yaml:"redis" mapstructure:"redis"`
	CounterRetention time.Duration `yaml:"counter_retention" mapstructure:"counter_retention"`
}

// RedisConfig addresses the Redis counter backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// AuditConfig controls the request log writer.
type AuditConfig struct {
	BufferSize int           `yaml:"buffer_size" mapstructure:"buffer_size"`
	Retention  time.Duration `yaml:"retention" mapstructure:"retention"`
}

// AuthConfig controls the operator admin API.
type AuthConfig struct {
	AdminSecret   string        `yaml:"admin_secret" mapstructure:"admin_secret"`
	AdminTokenTTL time.Duration `yaml:"admin_token_ttl" mapstructure:"admin_token_ttl"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a Config pre-filled with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ShutdownTimeout:   30 * time.Second,
			FunctionName:      "crm-api",
			IPRateLimit:       600,
			TrustProxyHeaders: true,
			CORS: CORSConfig{
				Origins: []string{},
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "leadkit.db",
		},
		RateLimit: RateLimitConfig{
			Backend:          "sql",
			FailOpen:         true,
			Redis:            RedisConfig{Addr: "localhost:6379"},
			CounterRetention: 48 * time.Hour,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			Retention:  30 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			AdminTokenTTL: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// setDefaults registers every key with viper so env overrides apply even
// when the file omits a section.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.debug", d.Server.Debug)
	v.SetDefault("server.function_name", d.Server.FunctionName)
	v.SetDefault("server.ip_rate_limit", d.Server.IPRateLimit)
	v.SetDefault("server.trust_proxy_headers", d.Server.TrustProxyHeaders)
	v.SetDefault("server.cors.origins", d.Server.CORS.Origins)
	v.SetDefault("server.cors.subdomain_suffix", d.Server.CORS.SubdomainSuffix)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("ratelimit.backend", d.RateLimit.Backend)
	v.SetDefault("ratelimit.fail_open", d.RateLimit.FailOpen)
	v.SetDefault("ratelimit.redis.addr", d.RateLimit.Redis.Addr)
	v.SetDefault("ratelimit.redis.password", d.RateLimit.Redis.Password)
	v.SetDefault("ratelimit.redis.db", d.RateLimit.Redis.DB)
	v.SetDefault("ratelimit.counter_retention", d.RateLimit.CounterRetention)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.retention", d.Audit.Retention)
	v.SetDefault("auth.admin_secret", d.Auth.AdminSecret)
	v.SetDefault("auth.admin_token_ttl", d.Auth.AdminTokenTTL)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Load builds the effective configuration: defaults, then the YAML file at
// path, then LEADKIT_* environment variables. An empty path searches the
// working directory and ~/.leadkit; a missing file is not an error then.
// Environment variables referenced as ${VAR_NAME} in the file are expanded
// before parsing.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	file := path
	if file == "" {
		file = findFile()
	}
	if file != "" {
		data, err := readExpanded(file)
		if err != nil {
			return nil, err
		}
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	candidates := []string{DefaultFileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".leadkit", DefaultFileName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func readExpanded(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return []byte(os.ExpandEnv(string(data))), nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.IPRateLimit < 0 {
		errs = append(errs, errors.New("server.ip_rate_limit must not be negative"))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: use sqlite, postgres or mysql", c.Database.Driver))
	}
	if c.Database.Driver != "sqlite" && c.Database.DSN == "" {
		errs = append(errs, fmt.Errorf("database.dsn is required for %s", c.Database.Driver))
	}
	switch c.RateLimit.Backend {
	case "sql":
	case "redis":
		if c.RateLimit.Redis.Addr == "" {
			errs = append(errs, errors.New("ratelimit.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("ratelimit.backend %q: use sql or redis", c.RateLimit.Backend))
	}
	if c.Audit.BufferSize <= 0 {
		errs = append(errs, errors.New("audit.buffer_size must be positive"))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: use text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a logging.level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level %q: use debug, info, warn or error", s)
	}
	return level, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteDefault writes the default configuration to a YAML file. It refuses
// to replace an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
