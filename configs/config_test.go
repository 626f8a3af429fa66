package configs_test

import (
	"testing"
	"time"

	config "github.com/avatarctic/ticket-cache/configs"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("ISSUER_SECRET", "issuer-secret")
	t.Setenv("SESSION_SECRET", "session-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := config.Load()
	require.NoError(t, err)

	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, config.CacheBackendFile, cfg.Cache.Backend)
	require.Equal(t, "players/auth.bin", cfg.Cache.FilePath)
	require.Equal(t, 60*time.Second, cfg.Cache.StaleAfter)
	require.Equal(t, 8, cfg.Cache.CookieKeySize)
	require.Equal(t, time.Minute, cfg.Issuer.RateWindow)
	require.Equal(t, 30*time.Second, cfg.Issuer.RequestTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_STALE_AFTER", "90s")
	t.Setenv("CACHE_COOKIE_KEY_SIZE", "16")
	t.Setenv("TICKET_REQUEST_TIMEOUT", "0s")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.False(t, cfg.Cache.Enabled)
	require.Equal(t, config.CacheBackendRedis, cfg.Cache.Backend)
	require.Equal(t, 90*time.Second, cfg.Cache.StaleAfter)
	require.Equal(t, 16, cfg.Cache.CookieKeySize)
	require.Zero(t, cfg.Issuer.RequestTimeout)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("CACHE_BACKEND", "s3")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_PanicsWithoutSecrets(t *testing.T) {
	t.Setenv("ISSUER_SECRET", "")
	require.Panics(t, func() { _, _ = config.Load() })
}
