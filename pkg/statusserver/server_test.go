package statusserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/connectivity"
	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/illmade-knight/go-chatsync/pkg/statusserver"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Endpoints(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	syncedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	cache, err := entitycache.New(entitycache.DefaultConfig(), kvstore.NewInMemoryStore(), zerolog.Nop(),
		entitycache.WithClock(clock.NewTestClock(syncedAt)))
	require.NoError(t, err)
	cache.WriteProfile(ctx, "u1", entitycache.Profile{UserID: "u1"})
	cache.MarkSynced(ctx, entitycache.KindProfiles)

	monitor := connectivity.NewMonitor(false, zerolog.Nop())
	srv := statusserver.New("127.0.0.1:0", "chatsync", cache, monitor, zerolog.Nop())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	base := "http://" + srv.Addr()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(base + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", string(body))
	})

	t.Run("status reports keys, markers and connectivity", func(t *testing.T) {
		resp, err := http.Get(base + "/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		var status statusserver.Status
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, "chatsync", status.Namespace)
		assert.Equal(t, 2, status.Keys, "profile entry and its sync marker")
		require.NotNil(t, status.Connected)
		assert.False(t, *status.Connected)
		assert.True(t, syncedAt.Equal(status.LastSynced["profiles"]))
		assert.NotContains(t, status.LastSynced, "conversations")
	})
}
