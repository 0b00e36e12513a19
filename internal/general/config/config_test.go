package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
  user: courier
  password: secret
  name: courier_dispatch
rabbitmq:
  user: guest
  password: guest
redis:
  addr: cache:6379
services:
  gateway: 8080
jwt:
  secret_key: test-secret
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 8080, cfg.Services.GatewayPort)
	assert.Equal(t, "test-secret", cfg.JWT.SecretKey)

	// defaults fill the gaps
	assert.Equal(t, 5672, cfg.RabbitMQ.Port)
	assert.Equal(t, "localhost", cfg.RabbitMQ.Host)
	assert.Equal(t, 3001, cfg.Services.DispatchPort)
	assert.Equal(t, 3002, cfg.Services.AdminPort)
}

func TestLoadFromFileMissingRequired(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
rabbitmq:
  user: guest
  password: guest
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user is required")
}

func TestLoadFromFileGeneratesJWTSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  user: u
  password: p
  name: n
rabbitmq:
  user: guest
  password: guest
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.JWT.SecretKey)
}

func TestLoadFromFileMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("COURIER_CONFIG", "")
	assert.Equal(t, "config/config.yaml", DefaultPath())

	t.Setenv("COURIER_CONFIG", "/etc/courier/override.yaml")
	assert.Equal(t, "/etc/courier/override.yaml", DefaultPath())
}
