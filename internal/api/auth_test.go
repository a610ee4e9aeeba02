package api

import (
	"net/http"
	"testing"

	"prokat/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedConfig() *config.APIConfig {
	return &config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "admin-key", Extra: "admin-extra", Name: "admin",
					Permissions: []string{"read:bookings", "write:bookings", "read:items"}},
				{Key: "reader-key", Extra: "reader-extra", Name: "reader",
					Permissions: []string{"read:bookings"}},
			},
		},
	}
}

func get(t *testing.T, url string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPAuth(t *testing.T) {
	ts := newTestServer(t, authedConfig())
	url := ts.URL + "/api/v1/bookings"

	t.Run("missing headers", func(t *testing.T) {
		resp := get(t, url, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown key", func(t *testing.T) {
		resp := get(t, url, map[string]string{"x-api-key": "nope", "x-api-extra": "nope"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong extra header", func(t *testing.T) {
		resp := get(t, url, map[string]string{"x-api-key": "admin-key", "x-api-extra": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid credentials", func(t *testing.T) {
		resp := get(t, url, map[string]string{"x-api-key": "admin-key", "x-api-extra": "admin-extra"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("permission denied for write", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, url, nil)
		require.NoError(t, err)
		req.Header.Set("x-api-key", "reader-key")
		req.Header.Set("x-api-extra", "reader-extra")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("healthz bypasses auth", func(t *testing.T) {
		resp := get(t, ts.URL+"/healthz", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := &config.APIConfig{
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 2},
	}
	ts := newTestServer(t, cfg)
	url := ts.URL + "/api/v1/bookings"

	seen429 := false
	for i := 0; i < 5; i++ {
		resp := get(t, url, map[string]string{"x-api-key": "burst-client"})
		if resp.StatusCode == http.StatusTooManyRequests {
			seen429 = true
		}
	}
	assert.True(t, seen429, "expected at least one rate-limited response")
}
