package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAdminKey() string { return strings.Repeat("k", MinAdminKeyLen) }

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", validAdminKey())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Nil(t, cfg.LLM.Temperature)
	assert.Equal(t, float64(10), cfg.RateLimit.Capacity)
	assert.Equal(t, 0.5, cfg.RateLimit.RefillRate)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.TTL)
	assert.Equal(t, 60*time.Second, cfg.ChatTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", validAdminKey())
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("RATE_LIMIT_CAPACITY", "2")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9000, cfg.Port)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.2, *cfg.LLM.Temperature)
	assert.Equal(t, float64(2), cfg.RateLimit.Capacity)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadRejectsMissingAdminKey(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "")
	_, err := Load()
	assert.ErrorContains(t, err, "ADMIN_API_KEY")
}

func TestLoadRejectsShortAdminKey(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "short")
	_, err := Load()
	assert.ErrorContains(t, err, "at least")
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", validAdminKey())
	t.Setenv("APP_ENV", "staging")
	_, err := Load()
	assert.ErrorContains(t, err, "APP_ENV")
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", validAdminKey())
	t.Setenv("PORT", "nope")
	_, err := Load()
	assert.ErrorContains(t, err, "PORT")
}
