package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.RateWindow)
	assert.Equal(t, int64(0), cfg.WorkerID)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadWorkerID(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WORKER_ID", "4096")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9999")
	t.Setenv("RATE_LIMIT_WINDOW", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.RateWindow)
}
