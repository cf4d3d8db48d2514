package kvstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	testCases := []struct {
		name string
		cfg  kvstore.Config
		want any
	}{
		{name: "default is memory", cfg: kvstore.Config{}, want: &kvstore.InMemoryStore{}},
		{name: "lru", cfg: kvstore.Config{Provider: kvstore.ProviderLRU, LRUSize: 8}, want: &kvstore.LRUStore{}},
		{name: "sqlite", cfg: kvstore.Config{Provider: kvstore.ProviderSQLite, SQLite: kvstore.SQLiteConfig{Path: ":memory:"}}, want: &kvstore.SQLiteStore{}},
		{name: "redis", cfg: kvstore.Config{Provider: kvstore.ProviderRedis, Redis: kvstore.RedisConfig{Addr: mr.Addr()}}, want: &kvstore.RedisStore{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := kvstore.Open(ctx, &tc.cfg, zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			assert.IsType(t, tc.want, store)

			require.NoError(t, store.Set(ctx, "k", "v"))
			v, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v", v)
		})
	}

	t.Run("unknown provider", func(t *testing.T) {
		_, err := kvstore.Open(ctx, &kvstore.Config{Provider: "etcd"}, zerolog.Nop())
		require.Error(t, err)
	})
}
