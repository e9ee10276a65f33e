// Package config loads server settings in three layers: built-in defaults,
// an optional YAML file, then environment variables. Later layers win.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides where the YAML file is looked up.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are tried in order when CONFIG_PATH is unset or missing.
var DefaultPaths = []string{"config.yaml", "config.yml"}

// minJWTSecret mirrors auth.MinSecretLength; config does not import auth.
const minJWTSecret = 16

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr is the listen address for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the storage backend. Driver is "sqlite" (Path is
// used) or "postgres" (DSN is used).
type DatabaseConfig struct {
	Driver       string        `koanf:"driver"`
	Path         string        `koanf:"path"`
	DSN          string        `koanf:"dsn"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// AuthConfig: an empty JWTSecret disables authentication entirely and the
// /api routes are not mounted.
type AuthConfig struct {
	JWTSecret          string        `koanf:"jwt_secret"`
	TokenTTL           time.Duration `koanf:"token_ttl"`
	GitHubClientID     string        `koanf:"github_client_id"`
	GitHubClientSecret string        `koanf:"github_client_secret"`
	GitHubCallbackURL  string        `koanf:"github_callback_url"`
}

// Enabled reports whether a JWT secret was configured.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         "data/spacedesk.db",
			QueryTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envMappings lists every environment variable the server reads. Anything
// else in the environment is ignored.
var envMappings = map[string]string{
	"host":                 "server.host",
	"port":                 "server.port",
	"db_driver":            "database.driver",
	"db_path":              "database.path",
	"database_url":         "database.dsn",
	"db_query_timeout":     "database.query_timeout",
	"jwt_secret":           "auth.jwt_secret",
	"token_ttl":            "auth.token_ttl",
	"github_client_id":     "auth.github_client_id",
	"github_client_secret": "auth.github_client_secret",
	"github_callback_url":  "auth.github_callback_url",
	"cors_origins":         "security.cors_origins",
	"rate_limit_requests":  "security.rate_limit_requests",
	"rate_limit_window":    "security.rate_limit_window",
	"rate_limit_disabled":  "security.rate_limit_disabled",
	"log_level":            "logging.level",
	"log_format":           "logging.format",
}

func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	// CORS_ORIGINS arrives as one comma-separated string.
	if err := splitList(k, "security.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if cfg.Auth.GitHubCallbackURL == "" {
		cfg.Auth.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(k *koanf.Koanf, path string) error {
	raw, ok := k.Get(path).(string)
	if !ok {
		return nil
	}

	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("config: setting %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("config: database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config: DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q (want sqlite or postgres)", c.Database.Driver)
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("config: database.query_timeout must be positive")
	}

	if c.Auth.Enabled() {
		if len(c.Auth.JWTSecret) < minJWTSecret {
			return fmt.Errorf("config: JWT_SECRET must be at least %d characters", minJWTSecret)
		}
		if c.Auth.TokenTTL <= 0 {
			return fmt.Errorf("config: auth.token_ttl must be positive")
		}
	}

	if !c.Security.RateLimitDisabled && (c.Security.RateLimitRequests < 1 || c.Security.RateLimitWindow <= 0) {
		return fmt.Errorf("config: rate limit needs positive requests and window")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}

	return nil
}
