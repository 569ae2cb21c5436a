package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("API_BASE_URL", "http://backend.local/api")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local/api", c.APIBaseURL)
	assert.Equal(t, 15*time.Second, c.APITimeout)
	assert.Equal(t, 20*time.Minute, c.DashboardInterval)
	assert.Equal(t, "Africa/Blantyre", c.Timezone)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, ":8081", c.OpsAddr)
}

func TestLoad_viteFallback(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("VITE_API_BASE_URL", "http://legacy.local")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://legacy.local", c.APIBaseURL)
}

func TestLoad_missingBaseURL(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("VITE_API_BASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_missingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("API_BASE_URL", "http://backend.local")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Location(t *testing.T) {
	loc, err := Config{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = Config{Timezone: "Nowhere/Atlantis"}.Location()
	assert.Error(t, err)
	assert.Equal(t, time.UTC, loc)
}
