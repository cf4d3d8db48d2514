// Package datasync packages the cache-then-network read path: serve what the
// entity cache holds, fetch the authoritative value through the executor,
// write it back and stamp the sync marker, or fall back to the stale value
// when the fetch fails.
package datasync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/illmade-knight/go-chatsync/pkg/executor"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Source is the authoritative backend.
type Source interface {
	Conversations(ctx context.Context) ([]entitycache.ConversationSummary, error)
	Messages(ctx context.Context, conversationID string) ([]entitycache.Message, error)
	Profile(ctx context.Context, userID string) (entitycache.Profile, error)
}

// Snapshot is the outcome of one load. Value holds the fresh result on
// success, the cached value when the fetch failed but a cached copy exists,
// and None otherwise. Err is the executor's error when the fetch failed.
type Snapshot[T any] struct {
	Value fn.Option[T]
	Fresh bool
	Err   error
}

// Stale reports whether the snapshot is a cached fallback after a failed fetch.
func (s Snapshot[T]) Stale() bool {
	return !s.Fresh && s.Value.IsSome()
}

// Config tunes the repository.
type Config struct {
	// RefreshConcurrency bounds the fetches RefreshAll runs at once.
	RefreshConcurrency int `mapstructure:"refresh_concurrency"`
}

// DefaultConfig returns a concurrency of 4.
func DefaultConfig() *Config {
	return &Config{RefreshConcurrency: 4}
}

// Repository combines an EntityCache, an Executor and a Source.
type Repository struct {
	cache       *entitycache.EntityCache
	exec        *executor.Executor
	source      Source
	concurrency int
	logger      zerolog.Logger
}

// New creates a Repository.
func New(cfg *Config, cache *entitycache.EntityCache, exec *executor.Executor, source Source, logger zerolog.Logger) (*Repository, error) {
	if cache == nil || exec == nil || source == nil {
		return nil, errors.New("repository requires a cache, an executor and a source")
	}
	if cfg.RefreshConcurrency < 1 {
		return nil, errors.New("refresh concurrency must be at least 1")
	}
	return &Repository{
		cache:       cache,
		exec:        exec,
		source:      source,
		concurrency: cfg.RefreshConcurrency,
		logger:      logger.With().Str("component", "SyncRepository").Logger(),
	}, nil
}

// Cache exposes the underlying cache so a caller can render before fetching.
func (r *Repository) Cache() *entitycache.EntityCache {
	return r.cache
}

// Conversations loads the inbox.
func (r *Repository) Conversations(ctx context.Context) Snapshot[[]entitycache.ConversationSummary] {
	return load(ctx, r, entitycache.KindConversations, "conversations",
		func(ctx context.Context) fn.Option[[]entitycache.ConversationSummary] {
			return r.cache.ReadList(ctx, entitycache.KindConversations)
		},
		func(ctx context.Context, v []entitycache.ConversationSummary) {
			r.cache.WriteList(ctx, entitycache.KindConversations, v)
		},
		r.source.Conversations,
	)
}

// Messages loads the message page of one conversation.
func (r *Repository) Messages(ctx context.Context, conversationID string) Snapshot[[]entitycache.Message] {
	return load(ctx, r, entitycache.KindMessages, conversationID,
		func(ctx context.Context) fn.Option[[]entitycache.Message] {
			return r.cache.ReadMessages(ctx, conversationID)
		},
		func(ctx context.Context, v []entitycache.Message) {
			r.cache.WriteMessages(ctx, conversationID, v)
		},
		func(ctx context.Context) ([]entitycache.Message, error) {
			return r.source.Messages(ctx, conversationID)
		},
	)
}

// Profile loads one user profile.
func (r *Repository) Profile(ctx context.Context, userID string) Snapshot[entitycache.Profile] {
	return load(ctx, r, entitycache.KindProfiles, userID,
		func(ctx context.Context) fn.Option[entitycache.Profile] {
			return r.cache.ReadProfile(ctx, userID)
		},
		func(ctx context.Context, v entitycache.Profile) {
			r.cache.WriteProfile(ctx, userID, v)
		},
		func(ctx context.Context) (entitycache.Profile, error) {
			return r.source.Profile(ctx, userID)
		},
	)
}

// ShouldRefresh reports whether kind has never been synced or was last synced
// at least minInterval ago.
func (r *Repository) ShouldRefresh(ctx context.Context, kind entitycache.Kind, minInterval time.Duration) bool {
	last := r.cache.LastSyncedAt(ctx, kind)
	if last.IsNone() {
		return true
	}
	synced := last.UnwrapOr(time.Time{})
	return r.cache.Clock().Now().Sub(synced) >= minInterval
}

// RefreshAll fetches the inbox, the given conversations' messages and the
// given profiles concurrently. Every fetch runs to completion; the returned
// error joins all failures.
func (r *Repository) RefreshAll(ctx context.Context, conversationIDs, userIDs []string) error {
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(r.concurrency)

	p.Go(func(ctx context.Context) error {
		return r.Conversations(ctx).Err
	})
	for _, id := range conversationIDs {
		p.Go(func(ctx context.Context) error {
			if err := r.Messages(ctx, id).Err; err != nil {
				return fmt.Errorf("messages %s: %w", id, err)
			}
			return nil
		})
	}
	for _, id := range userIDs {
		p.Go(func(ctx context.Context) error {
			if err := r.Profile(ctx, id).Err; err != nil {
				return fmt.Errorf("profile %s: %w", id, err)
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		r.logger.Warn().Err(err).Msg("Refresh completed with failures.")
		return err
	}
	r.logger.Debug().Int("conversations", len(conversationIDs)).Int("profiles", len(userIDs)).Msg("Refresh completed.")
	return nil
}

func load[T any](
	ctx context.Context,
	r *Repository,
	kind entitycache.Kind,
	id string,
	read func(context.Context) fn.Option[T],
	write func(context.Context, T),
	fetch executor.Operation[T],
) Snapshot[T] {
	cached := read(ctx)

	value, err := executor.Execute(ctx, r.exec, fetch)
	if err != nil {
		event := r.logger.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Str("failure", executor.Classify(err).String())
		if cached.IsSome() {
			event.Msg("Fetch failed, serving cached value.")
		} else {
			event.Msg("Fetch failed and nothing is cached.")
		}
		return Snapshot[T]{Value: cached, Err: err}
	}

	write(ctx, value)
	r.cache.MarkSynced(ctx, kind)
	return Snapshot[T]{Value: fn.Some(value), Fresh: true}
}
