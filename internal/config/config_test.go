package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Relay.MaxBackoff)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Len(t, cfg.Relay.Subscribers, 2)
	assert.Equal(t, "postgres", cfg.Idempotency.Backend)
	assert.Equal(t, 3*time.Second, cfg.Redis.DialTimeout)
	assert.Zero(t, cfg.Redis.PoolSize, "zero keeps the go-redis default")
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
app:
  name: department-service
relay:
  subscribers:
    - http://a/events
  poll_interval: 5s
  max_backoff: 30s
idempotency:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("RELAY_MAX_BACKOFF", "10s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "department-service", cfg.App.Name)
	assert.Equal(t, []string{"http://a/events"}, cfg.Relay.Subscribers)
	assert.Equal(t, 5*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Relay.MaxBackoff)
	assert.Equal(t, "memory", cfg.Idempotency.Backend)
}

func TestLoad_RejectsUnknownIdempotencyBackend(t *testing.T) {
	t.Setenv("IDEMPOTENCY_BACKEND", "etcd")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "unknown idempotency backend")
}

func TestPostgres_DSN(t *testing.T) {
	p := Postgres{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "x", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/x?sslmode=disable", p.DSN())
}
