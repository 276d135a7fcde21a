package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-grant-engine/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, config.EnvDevelopment, cfg.Env)
	require.Equal(t, ":8080", cfg.Port)
	require.Equal(t, "http://localhost:8080", cfg.Issuer)
	require.False(t, cfg.Redis.Enabled)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestEngineDefaults(t *testing.T) {
	var engine config.EngineConfig = config.Engine{}

	require.Equal(t, 5*time.Minute, engine.GetDefaultIdentityTokenLifetime())
	require.Equal(t, time.Hour, engine.GetDefaultAccessTokenLifetime())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GRANT_ENGINE_ENV", config.EnvProduction)
	t.Setenv("GRANT_ENGINE_ISSUER", "https://auth.example.com")
	t.Setenv("GRANT_ENGINE_REDIS_ENABLED", "true")
	t.Setenv("GRANT_ENGINE_REDIS_ADDR", "redis:6379")
	t.Setenv("GRANT_ENGINE_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, config.EnvProduction, cfg.Env)
	require.Equal(t, "https://auth.example.com", cfg.Issuer)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	require.Equal(t, "debug", cfg.Log.Level)
}
