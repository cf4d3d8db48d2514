package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/config"
	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// No chatsync.yaml exists in the package directory.
	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "chatsync", cfg.Cache.Namespace)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 100, cfg.Cache.MaxMessagesPerConversation)
	assert.Equal(t, 3, cfg.Executor.Retries)
	assert.Equal(t, 10*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, time.Second, cfg.Executor.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Executor.ConnectivityWait)
	assert.Equal(t, kvstore.ProviderSQLite, cfg.Store.Provider)
	assert.Equal(t, 30*time.Second, cfg.MQTT.KeepAlive)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
cache:
  namespace: market
  ttl: 12h
executor:
  retries: 5
  base_delay: 250ms
store:
  provider: redis
  redis:
    addr: cache.internal:6379
    db: 2
`)
	t.Setenv("CHATSYNC_EXECUTOR_TIMEOUT", "3s")
	t.Setenv("CHATSYNC_CACHE_NAMESPACE", "market-eu")

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "market-eu", cfg.Cache.Namespace, "env wins over file")
	assert.Equal(t, 12*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 5, cfg.Executor.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Executor.BaseDelay)
	assert.Equal(t, 3*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, kvstore.ProviderRedis, cfg.Store.Provider)
	assert.Equal(t, "cache.internal:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, 100, cfg.Cache.MaxMessagesPerConversation, "unset keys keep defaults")
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "zero retries", body: "executor:\n  retries: 0\n"},
		{name: "bad log level", body: "log_level: loud\n"},
		{name: "empty namespace", body: "cache:\n  namespace: \"\"\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}

	t.Run("explicit file must exist", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}
