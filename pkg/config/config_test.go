package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "READ", cfg.Auth.DefaultPermission)
	assert.Equal(t, "modeltrack", cfg.Auth.Realm)
	assert.Equal(t, 100, cfg.Auth.MaxRefillFetches)
	assert.True(t, cfg.Audit.Enabled)
	assert.True(t, cfg.Audit.LogDenied)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
listen_addr: ":9090"
database:
  type: sqlite
  dsn: ":memory:"
auth:
  default_permission: NO_PERMISSIONS
  admin_username: root
  admin_password: hunter2
  realm: testrealm
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "NO_PERMISSIONS", cfg.Auth.DefaultPermission)
	assert.Equal(t, "root", cfg.Auth.AdminUsername)
	assert.Equal(t, "testrealm", cfg.Auth.Realm)
}

func TestLoadRejectsUnknownPermission(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  default_permission: WRITE\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRITE")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Type: "sqlite", DSN: ":memory:"},
			Auth: AuthConfig{
				DefaultPermission: "READ",
				AdminUsername:     "admin",
				AdminPassword:     "secret",
			},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Database.Type = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth.AdminUsername = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth.MaxRefillFetches = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Audit.RetentionDays = -1
	assert.Error(t, cfg.Validate())
}
