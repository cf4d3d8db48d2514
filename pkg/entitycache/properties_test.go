package entitycache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
	"pgregory.net/rapid"
)

// TestTTLInvariant verifies that an entry written at T with ttl D is readable
// for every read at or before T+D and absent for every read after it.
func TestTTLInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		ttl := time.Duration(rapid.Int64Range(1, int64(48*time.Hour)).Draw(t, "ttl"))
		offset := time.Duration(rapid.Int64Range(0, int64(96*time.Hour)).Draw(t, "offset"))

		tc := clock.NewTestClock(epoch)
		cfg := entitycache.DefaultConfig()
		cfg.TTL = ttl
		c, err := entitycache.New(cfg, kvstore.NewInMemoryStore(), zerolog.Nop(), entitycache.WithClock(tc))
		if err != nil {
			t.Fatal(err)
		}

		userID := rapid.StringMatching(`[a-z0-9]{1,12}`).Draw(t, "userID")
		c.WriteProfile(ctx, userID, entitycache.Profile{UserID: userID})
		tc.SetTime(epoch.Add(offset))

		// PROPERTY: presence is decided exactly by the ttl boundary.
		present := c.ReadProfile(ctx, userID).IsSome()
		if want := offset <= ttl; present != want {
			t.Fatalf("read at +%v with ttl %v: present=%v, want %v", offset, ttl, present, want)
		}
	})
}

// TestTruncationInvariant verifies that stored pages hold exactly the newest
// min(L, limit) messages in their original relative order.
func TestTruncationInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		limit := rapid.IntRange(1, 120).Draw(t, "limit")
		length := rapid.IntRange(0, 300).Draw(t, "length")

		cfg := entitycache.DefaultConfig()
		cfg.MaxMessagesPerConversation = limit
		c, err := entitycache.New(cfg, kvstore.NewInMemoryStore(), zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}

		written := make([]entitycache.Message, length)
		for i := range written {
			written[i] = entitycache.Message{ID: fmt.Sprintf("m%d", i), ConversationID: "c"}
		}
		c.WriteMessages(ctx, "c", written)

		stored := c.ReadMessages(ctx, "c").UnwrapOr(nil)
		want := min(length, limit)

		// PROPERTY: length is bounded and the tail of the input is kept verbatim.
		if len(stored) != want {
			t.Fatalf("stored %d messages, want %d", len(stored), want)
		}
		for i, m := range stored {
			if expected := written[length-want+i].ID; m.ID != expected {
				t.Fatalf("position %d holds %s, want %s", i, m.ID, expected)
			}
		}
	})
}
