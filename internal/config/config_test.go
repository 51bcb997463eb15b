package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, EnvProd, cfg.Env)
	assert.Equal(t, "8000", cfg.APIServerPort)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, cfg.CleanupInterval)
	assert.Equal(t, 5*time.Minute, cfg.MaxIdle)
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("WS_HEARTBEAT_INTERVAL", "10s")
	t.Setenv("WS_MAX_IDLE", "2m")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Env)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 2*time.Minute, cfg.MaxIdle)
}

func TestNewRejectsInvalidEnv(t *testing.T) {
	t.Setenv("ENV", "staging")

	_, err := New()
	assert.Error(t, err)
}
