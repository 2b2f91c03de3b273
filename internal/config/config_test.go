package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) {
	t.Helper()
	t.Setenv("PEAKPARTNER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	noEnvFile(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:50051", cfg.GRPCAddr())
	assert.Equal(t, 10*time.Second, cfg.GRPCRequestTimeout)
	assert.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
	assert.Equal(t, LockBackendNone, cfg.LockBackend)
	assert.Equal(t, 3*time.Second, cfg.DBLockTimeout)
	assert.True(t, cfg.MigrateOnStart)
	assert.True(t, cfg.CancelPendingOnClose)
	assert.False(t, cfg.HTTPEnabled)
	assert.Equal(t, 40, cfg.RateLimitBurst)
}

func TestLoad_EnvOverridesAndAddrSplit(t *testing.T) {
	noEnvFile(t)
	t.Setenv("PEAKPARTNER_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("PEAKPARTNER_STORE_BACKEND", "Memory")
	t.Setenv("PEAKPARTNER_LOCK_BACKEND", "redis")
	t.Setenv("PEAKPARTNER_LOCK_LEASE_TTL", "2s")
	t.Setenv("PEAKPARTNER_RESCHEDULE_CANCEL_PENDING_ON_CLOSE", "false")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.GRPCHost)
	assert.Equal(t, 6000, cfg.GRPCPort)
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, LockBackendRedis, cfg.LockBackend)
	assert.Equal(t, 2*time.Second, cfg.LockLeaseTTL)
	assert.False(t, cfg.CancelPendingOnClose)
	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.DatabaseURL)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PEAKPARTNER_RATELIMIT_BURST=7\n"), 0o600))
	t.Setenv("PEAKPARTNER_ENV_FILE", path)
	t.Cleanup(func() { _ = os.Unsetenv("PEAKPARTNER_RATELIMIT_BURST") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimitBurst)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad duration", env: map[string]string{"PEAKPARTNER_DATABASE_LOCK_TIMEOUT": "soon"}},
		{name: "unknown store", env: map[string]string{"PEAKPARTNER_STORE_BACKEND": "sqlite"}},
		{name: "unknown lock", env: map[string]string{"PEAKPARTNER_LOCK_BACKEND": "zookeeper"}},
		{name: "http without secret", env: map[string]string{"PEAKPARTNER_HTTP_ENABLED": "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noEnvFile(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
