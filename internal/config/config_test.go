package config

import (
	"os"
	"path/filepath"
	"testing"

	"prokat/internal/models"

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
	path := writeConfig(t, `
app:
  name: prokat
  environment: test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "x-api-extra", cfg.API.Auth.HeaderExtra)
	assert.Equal(t, models.AuditQueueSize, cfg.Audit.QueueSize)
	assert.Equal(t, "exports", cfg.Exports.Path)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis:6379")

	path := writeConfig(t, `
redis:
  address: ${TEST_REDIS_ADDR}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
}

func TestValidate(t *testing.T) {
	t.Run("audit enabled requires path", func(t *testing.T) {
		path := writeConfig(t, `
audit:
  enabled: true
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "audit path")
	})

	t.Run("backup enabled requires storage path", func(t *testing.T) {
		path := writeConfig(t, `
backup:
  enabled: true
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backup storage path")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestValidateItems(t *testing.T) {
	t.Run("valid catalog", func(t *testing.T) {
		err := ValidateItems([]models.Item{
			{ID: "car-1", Name: "Camry"},
			{ID: "car-2", Name: "Sportage"},
		})
		assert.NoError(t, err)
	})

	t.Run("empty id", func(t *testing.T) {
		err := ValidateItems([]models.Item{{Name: "Nameless"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty ID")
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := ValidateItems([]models.Item{
			{ID: "car-1", Name: "Camry"},
			{ID: "car-1", Name: "Camry again"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate item ID")
	})
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  name: prokat
  environment: prod
  version: "1.2.3"
audit:
  enabled: true
  path: data/audit.db
  queue_size: 42
api:
  http:
    port: 9000
  auth:
    enabled: true
    api_keys:
      - key: k1
        extra: e1
        name: site
        permissions: [read:bookings]
  rate_limit:
    rps: 5
    burst: 10
items:
  - id: car-1
    name: Camry
    sort_order: 1
    is_active: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prokat", cfg.App.Name)
	assert.Equal(t, 9000, cfg.API.HTTP.Port)
	assert.Equal(t, 42, cfg.Audit.QueueSize)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, []string{"read:bookings"}, cfg.API.Auth.APIKeys[0].Permissions)
	require.Len(t, cfg.Items, 1)
	assert.True(t, cfg.Items[0].IsActive)
	assert.Equal(t, 5.0, cfg.API.RateLimit.RPS)
}
