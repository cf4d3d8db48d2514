// Package invalidation drops cache entries when the backend announces that
// the underlying data changed.
package invalidation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/rs/zerolog"
)

// Message attributes carried by every change event.
const (
	AttrKind = "kind"
	AttrID   = "id"
)

// Invalidator is the part of the entity cache the listener drives.
type Invalidator interface {
	InvalidateList(ctx context.Context, kind entitycache.Kind)
	InvalidateMessages(ctx context.Context, conversationID string)
	InvalidateProfile(ctx context.Context, userID string)
}

// Config holds the Pub/Sub subscription settings.
type Config struct {
	ProjectID              string `mapstructure:"project_id"`
	SubscriptionID         string `mapstructure:"subscription_id"`
	MaxOutstandingMessages int    `mapstructure:"max_outstanding_messages"`
	NumGoroutines          int    `mapstructure:"num_goroutines"`
}

// DefaultConfig returns settings for subID.
func DefaultConfig(subID string) *Config {
	return &Config{
		SubscriptionID:         subID,
		MaxOutstandingMessages: 100,
		NumGoroutines:          2,
	}
}

// Listener receives change events and invalidates the matching entries.
// A "conversations" event drops the inbox list, a "messages" event drops one
// conversation's page and a "profiles" event drops one profile.
type Listener struct {
	subscription *pubsub.Subscription
	cache        Invalidator
	logger       zerolog.Logger

	stopOnce           sync.Once
	cancelSubscription context.CancelFunc
	doneChan           chan struct{}
}

// NewListener verifies the subscription exists and prepares a Listener.
func NewListener(ctx context.Context, cfg *Config, client *pubsub.Client, cache Invalidator, logger zerolog.Logger) (*Listener, error) {
	if client == nil || cache == nil {
		return nil, errors.New("listener requires a pubsub client and a cache")
	}
	sub := client.Subscription(cfg.SubscriptionID)

	existsCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	ok, err := sub.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("checking subscription %s: %w", cfg.SubscriptionID, err)
	}
	if !ok {
		return nil, fmt.Errorf("subscription %s does not exist", cfg.SubscriptionID)
	}

	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines

	return &Listener{
		subscription: sub,
		cache:        cache,
		logger:       logger.With().Str("component", "InvalidationListener").Str("subscription_id", cfg.SubscriptionID).Logger(),
		doneChan:     make(chan struct{}),
	}, nil
}

// Start begins receiving in the background.
func (l *Listener) Start(ctx context.Context) error {
	receiveCtx, cancel := context.WithCancel(ctx)
	l.cancelSubscription = cancel
	go func() {
		defer close(l.doneChan)
		defer l.logger.Info().Msg("Invalidation receive loop stopped.")

		l.logger.Info().Msg("Invalidation receive loop started.")
		err := l.subscription.Receive(receiveCtx, func(ctx context.Context, msg *pubsub.Message) {
			if err := l.handle(ctx, msg.Attributes); err != nil {
				// Malformed events can never succeed, so they are acked and dropped.
				l.logger.Warn().Err(err).Str("msg_id", msg.ID).Msg("Dropping malformed change event.")
			}
			msg.Ack()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error().Err(err).Msg("Pub/Sub Receive call exited with error")
		}
	}()
	return nil
}

func (l *Listener) handle(ctx context.Context, attrs map[string]string) error {
	kind := entitycache.Kind(attrs[AttrKind])
	id := attrs[AttrID]
	switch kind {
	case entitycache.KindConversations:
		l.cache.InvalidateList(ctx, entitycache.KindConversations)
	case entitycache.KindMessages:
		if id == "" {
			return errors.New("messages event without a conversation id")
		}
		l.cache.InvalidateMessages(ctx, id)
	case entitycache.KindProfiles:
		if id == "" {
			return errors.New("profiles event without a user id")
		}
		l.cache.InvalidateProfile(ctx, id)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	l.logger.Debug().Str("kind", string(kind)).Str("id", id).Msg("Invalidated cache entry.")
	return nil
}

// Stop cancels the receive loop and waits for it to exit or ctx to end.
func (l *Listener) Stop(ctx context.Context) error {
	var err error
	l.stopOnce.Do(func() {
		if l.cancelSubscription != nil {
			l.cancelSubscription()
		} else {
			close(l.doneChan)
		}
		select {
		case <-l.doneChan:
		case <-ctx.Done():
			err = fmt.Errorf("timed out waiting for invalidation listener to stop: %w", ctx.Err())
		}
	})
	return err
}

// Done is closed once the receive loop has exited.
func (l *Listener) Done() <-chan struct{} {
	return l.doneChan
}
