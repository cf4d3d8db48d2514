package kvstore_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUStore_Eviction(t *testing.T) {
	ctx := context.Background()

	t.Run("Eviction policy works correctly", func(t *testing.T) {
		// Arrange: a store holding at most two keys.
		store, err := kvstore.NewLRUStore(2)
		require.NoError(t, err)

		// Act 1: fill the store.
		require.NoError(t, store.Set(ctx, "key1", "1"))
		require.NoError(t, store.Set(ctx, "key2", "2"))

		// Act 2: touch key1 so key2 becomes least recently used.
		_, ok, err := store.Get(ctx, "key1")
		require.NoError(t, err)
		require.True(t, ok)

		// Act 3: a third key evicts key2.
		require.NoError(t, store.Set(ctx, "key3", "3"))

		// Assert
		assert.Equal(t, 2, store.Len())
		_, ok, _ = store.Get(ctx, "key2")
		assert.False(t, ok, "key2 should have been evicted")
		v, ok, _ := store.Get(ctx, "key1")
		assert.True(t, ok)
		assert.Equal(t, "1", v)

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"key1", "key3"}, keys, "keys are reported most recently used first")
	})

	t.Run("Overwrite does not grow the store", func(t *testing.T) {
		store, err := kvstore.NewLRUStore(1)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "k", "a"))
		require.NoError(t, store.Set(ctx, "k", "b"))

		assert.Equal(t, 1, store.Len())
		v, _, _ := store.Get(ctx, "k")
		assert.Equal(t, "b", v)
	})

	t.Run("Invalid size", func(t *testing.T) {
		_, err := kvstore.NewLRUStore(0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maxSize must be greater than 0")
	})
}
