// Package entitycache is the advisory, TTL-bounded local store for conversation
// lists, message pages and user profiles. It never surfaces storage errors:
// every public operation is a containment boundary that logs the failure and
// degrades to a miss or a no-op.
package entitycache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultNamespace                  = "chatsync"
	DefaultTTL                        = 24 * time.Hour
	DefaultMaxMessagesPerConversation = 100
)

// Config holds the tunables of an EntityCache.
type Config struct {
	// Namespace prefixes every key the cache writes.
	Namespace string `mapstructure:"namespace"`
	// TTL is the maximum age of a readable entry.
	TTL time.Duration `mapstructure:"ttl"`
	// MaxMessagesPerConversation bounds each stored message page.
	MaxMessagesPerConversation int `mapstructure:"max_messages_per_conversation"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Namespace:                  DefaultNamespace,
		TTL:                        DefaultTTL,
		MaxMessagesPerConversation: DefaultMaxMessagesPerConversation,
	}
}

// Option customises an EntityCache at construction.
type Option func(*EntityCache)

// WithClock replaces the wall clock used for storedAt stamps and expiry checks.
func WithClock(c clock.Clock) Option {
	return func(ec *EntityCache) {
		ec.clock = c
	}
}

// EntityCache is constructed once per process and shared by reference.
type EntityCache struct {
	store       kvstore.Store
	keys        keyspace
	ttl         time.Duration
	maxMessages int
	clock       clock.Clock
	logger      zerolog.Logger
}

// New creates an EntityCache over store.
func New(cfg *Config, store kvstore.Store, logger zerolog.Logger, opts ...Option) (*EntityCache, error) {
	if store == nil {
		return nil, errors.New("entity cache requires a store")
	}
	if cfg.Namespace == "" {
		return nil, errors.New("entity cache namespace cannot be empty")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("entity cache ttl must be positive")
	}
	if cfg.MaxMessagesPerConversation <= 0 {
		return nil, errors.New("max messages per conversation must be positive")
	}

	ec := &EntityCache{
		store:       store,
		keys:        keyspace{namespace: cfg.Namespace},
		ttl:         cfg.TTL,
		maxMessages: cfg.MaxMessagesPerConversation,
		clock:       clock.NewDefaultClock(),
		logger:      logger.With().Str("component", "EntityCache").Str("namespace", cfg.Namespace).Logger(),
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec, nil
}

// Clock exposes the cache's time source so collaborators share it.
func (c *EntityCache) Clock() clock.Clock {
	return c.clock
}

// WriteList replaces the list cached for kind.
func (c *EntityCache) WriteList(ctx context.Context, kind Kind, conversations []ConversationSummary) {
	writeEntry(ctx, c, c.keys.list(kind), conversations)
}

// ReadList returns the list cached for kind if it has not expired.
func (c *EntityCache) ReadList(ctx context.Context, kind Kind) fn.Option[[]ConversationSummary] {
	return readEntry[[]ConversationSummary](ctx, c, c.keys.list(kind))
}

// WriteMessages stores the newest MaxMessagesPerConversation messages of a
// conversation. messages must be ordered oldest first.
func (c *EntityCache) WriteMessages(ctx context.Context, conversationID string, messages []Message) {
	writeEntry(ctx, c, c.keys.messages(conversationID), newest(messages, c.maxMessages))
}

// ReadMessages returns the cached message page for a conversation.
func (c *EntityCache) ReadMessages(ctx context.Context, conversationID string) fn.Option[[]Message] {
	return readEntry[[]Message](ctx, c, c.keys.messages(conversationID))
}

// WriteProfile replaces the cached profile of userID.
func (c *EntityCache) WriteProfile(ctx context.Context, userID string, profile Profile) {
	writeEntry(ctx, c, c.keys.profile(userID), profile)
}

// ReadProfile returns the cached profile of userID.
func (c *EntityCache) ReadProfile(ctx context.Context, userID string) fn.Option[Profile] {
	return readEntry[Profile](ctx, c, c.keys.profile(userID))
}

// InvalidateList drops the cached list for kind.
func (c *EntityCache) InvalidateList(ctx context.Context, kind Kind) {
	c.remove(ctx, c.keys.list(kind))
}

// InvalidateMessages drops the cached message page of a conversation.
func (c *EntityCache) InvalidateMessages(ctx context.Context, conversationID string) {
	c.remove(ctx, c.keys.messages(conversationID))
}

// InvalidateProfile drops the cached profile of userID.
func (c *EntityCache) InvalidateProfile(ctx context.Context, userID string) {
	c.remove(ctx, c.keys.profile(userID))
}

// MarkSynced records now as the last synchronisation time of kind.
func (c *EntityCache) MarkSynced(ctx context.Context, kind Kind) {
	key := c.keys.syncMarker(kind)
	stamp := c.clock.Now().UTC().Format(time.RFC3339Nano)
	if err := c.store.Set(ctx, key, stamp); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to write sync marker.")
	}
}

// LastSyncedAt returns when kind was last synchronised. Markers never expire.
func (c *EntityCache) LastSyncedAt(ctx context.Context, kind Kind) fn.Option[time.Time] {
	key := c.keys.syncMarker(kind)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to read sync marker, treating as never synced.")
		return fn.None[time.Time]()
	}
	if !ok {
		return fn.None[time.Time]()
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Unreadable sync marker, treating as never synced.")
		return fn.None[time.Time]()
	}
	return fn.Some(ts)
}

// NamespaceKeys lists every key owned by this cache.
func (c *EntityCache) NamespaceKeys(ctx context.Context) []string {
	all, err := c.store.Keys(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to list store keys.")
		return nil
	}
	owned := make([]string, 0, len(all))
	for _, k := range all {
		if c.keys.owns(k) {
			owned = append(owned, k)
		}
	}
	return owned
}

// SweepExpired removes every expired or undecodable entry in the namespace and
// returns how many keys were removed. Sync markers are never swept.
func (c *EntityCache) SweepExpired(ctx context.Context) int {
	now := c.clock.Now()
	var doomed []string
	for _, key := range c.NamespaceKeys(ctx) {
		if c.keys.isSyncMarker(key) {
			continue
		}
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Sweep could not read entry, skipping.")
			continue
		}
		if !ok {
			continue
		}
		var entry Entry[json.RawMessage]
		if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Expired(now, c.ttl) {
			doomed = append(doomed, key)
		}
	}
	if len(doomed) == 0 {
		return 0
	}
	if err := c.store.RemoveMany(ctx, doomed); err != nil {
		c.logger.Error().Err(err).Int("count", len(doomed)).Msg("Sweep failed to remove expired entries.")
		return 0
	}
	c.logger.Debug().Int("removed", len(doomed)).Msg("Swept expired entries.")
	return len(doomed)
}

// ClearAll removes every key in the namespace, sync markers included, and
// returns how many keys were removed. Keys outside the namespace are untouched.
func (c *EntityCache) ClearAll(ctx context.Context) int {
	keys := c.NamespaceKeys(ctx)
	if len(keys) == 0 {
		return 0
	}
	if err := c.store.RemoveMany(ctx, keys); err != nil {
		c.logger.Error().Err(err).Int("count", len(keys)).Msg("Failed to clear cache namespace.")
		return 0
	}
	c.logger.Info().Int("removed", len(keys)).Msg("Cleared cache namespace.")
	return len(keys)
}

func (c *EntityCache) remove(ctx context.Context, key string) {
	if err := c.store.Remove(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to remove cache entry.")
	}
}

func writeEntry[T any](ctx context.Context, c *EntityCache, key string, payload T) {
	data, err := json.Marshal(Entry[T]{StoredAt: c.clock.Now().UTC(), Payload: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to marshal cache entry.")
		return
	}
	if err := c.store.Set(ctx, key, string(data)); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to write cache entry.")
		return
	}
	c.logger.Debug().Str("key", key).Msg("Stored cache entry.")
}

func readEntry[T any](ctx context.Context, c *EntityCache, key string) fn.Option[T] {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss.")
		return fn.None[T]()
	}
	if !ok {
		return fn.None[T]()
	}

	var entry Entry[T]
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry, removing.")
		c.remove(ctx, key)
		return fn.None[T]()
	}
	if entry.Expired(c.clock.Now(), c.ttl) {
		c.logger.Debug().Str("key", key).Time("stored_at", entry.StoredAt).Msg("Cache entry expired, removing.")
		c.remove(ctx, key)
		return fn.None[T]()
	}
	return fn.Some(entry.Payload)
}

// newest returns the last limit messages, copied so the caller's slice is not retained.
func newest(messages []Message, limit int) []Message {
	start := 0
	if len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]Message, len(messages)-start)
	copy(out, messages[start:])
	return out
}
