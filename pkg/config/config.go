// Package config loads and validates server configuration. Permission names
// are checked against the lattice here so misconfiguration fails at startup
// rather than on the request path.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/modeltrack/modeltrack/pkg/audit"
	"github.com/modeltrack/modeltrack/pkg/permissions"
)

// Config holds the full server configuration.
type Config struct {
	ListenAddr string         `mapstructure:"listen_addr"`
	Database   DatabaseConfig `mapstructure:"database"`
	Auth       AuthConfig     `mapstructure:"auth"`
	CORS       CORSConfig     `mapstructure:"cors"`
	Audit      audit.Config   `mapstructure:"audit"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Type is one of "sqlite", "postgres", "mysql".
	Type string `mapstructure:"type"`
	// DSN is the driver-specific connection string. For sqlite this is a
	// file path; ":memory:" is accepted for throwaway deployments.
	DSN string `mapstructure:"dsn"`
}

// AuthConfig configures authentication and authorization behavior.
type AuthConfig struct {
	// DefaultPermission applies to any (resource, user) pair without an
	// explicit grant. Must name a known permission level.
	DefaultPermission string `mapstructure:"default_permission"`
	// AdminUsername and AdminPassword bootstrap the initial administrator.
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	// Realm is sent in WWW-Authenticate challenges.
	Realm string `mapstructure:"realm"`
	// JWTSecret enables bearer-token authentication when non-empty.
	JWTSecret string `mapstructure:"jwt_secret"`
	// MaxRefillFetches caps store round-trips in the search redaction
	// refill loop. Zero means unlimited.
	MaxRefillFetches int `mapstructure:"max_refill_fetches"`
}

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from the given file (optional) and MODELTRACK_*
// environment variables, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MODELTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":5000")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "modeltrack.db")
	v.SetDefault("auth.default_permission", permissions.Read.Name)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "password1234")
	v.SetDefault("auth.realm", "modeltrack")
	v.SetDefault("auth.max_refill_fetches", 100)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.log_denied", true)
	v.SetDefault("audit.retention_days", 90)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that must hold before the server starts.
func (c *Config) Validate() error {
	if _, err := permissions.Get(c.Auth.DefaultPermission); err != nil {
		return fmt.Errorf("auth.default_permission: %w", err)
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.type: unsupported type %q", c.Database.Type)
	}
	if c.Auth.AdminUsername == "" {
		return fmt.Errorf("auth.admin_username must not be empty")
	}
	if c.Auth.AdminPassword == "" {
		return fmt.Errorf("auth.admin_password must not be empty")
	}
	if c.Auth.MaxRefillFetches < 0 {
		return fmt.Errorf("auth.max_refill_fetches must not be negative")
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative")
	}
	return nil
}
