// Package backend holds the authoritative data sources the sync repository
// fetches from.
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/illmade-knight/go-chatsync/pkg/executor"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	profilesCollection      = "profiles"
)

// ErrNotFound is returned, marked permanent, when a requested document does
// not exist. Retrying will not make it appear.
var ErrNotFound = errors.New("document not found")

// FirestoreConfig holds configuration for the Firestore source.
type FirestoreConfig struct {
	ProjectID string `mapstructure:"project_id"`
	// UserID is the signed-in user whose inbox is listed.
	UserID string `mapstructure:"user_id"`
	// InboxLimit caps the number of conversations fetched.
	InboxLimit int `mapstructure:"inbox_limit"`
	// PageSize caps the number of messages fetched per conversation.
	PageSize int `mapstructure:"page_size"`
}

// FirestoreSource reads conversations, messages and profiles from Firestore:
// conversations/{id}, conversations/{id}/messages/{id} and profiles/{id}.
type FirestoreSource struct {
	client     *firestore.Client
	userID     string
	inboxLimit int
	pageSize   int
	logger     zerolog.Logger
}

// NewFirestoreSource creates a FirestoreSource around an existing client.
func NewFirestoreSource(cfg *FirestoreConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreSource, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	if cfg.UserID == "" {
		return nil, errors.New("firestore source requires a user id")
	}
	inboxLimit := cfg.InboxLimit
	if inboxLimit <= 0 {
		inboxLimit = 50
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = entitycache.DefaultMaxMessagesPerConversation
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("user_id", cfg.UserID).Msg("FirestoreSource initialized.")

	return &FirestoreSource{
		client:     client,
		userID:     cfg.UserID,
		inboxLimit: inboxLimit,
		pageSize:   pageSize,
		logger:     logger.With().Str("component", "FirestoreSource").Logger(),
	}, nil
}

// Conversations returns the user's conversations, most recently active first.
func (s *FirestoreSource) Conversations(ctx context.Context) ([]entitycache.ConversationSummary, error) {
	q := s.client.Collection(conversationsCollection).
		Where("participantIds", "array-contains", s.userID).
		OrderBy("lastMessageAt", firestore.Desc).
		Limit(s.inboxLimit)

	conversations, err := collect[entitycache.ConversationSummary](q.Documents(ctx))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query conversations.")
		return nil, fmt.Errorf("firestore query conversations: %w", err)
	}
	s.logger.Debug().Int("count", len(conversations)).Msg("Fetched conversations from Firestore.")
	return conversations, nil
}

// Messages returns the newest page of a conversation, oldest first.
func (s *FirestoreSource) Messages(ctx context.Context, conversationID string) ([]entitycache.Message, error) {
	q := s.client.Collection(conversationsCollection).Doc(conversationID).
		Collection(messagesCollection).
		OrderBy("sentAt", firestore.Desc).
		Limit(s.pageSize)

	messages, err := collect[entitycache.Message](q.Documents(ctx))
	if err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to query messages.")
		return nil, fmt.Errorf("firestore query messages for %s: %w", conversationID, err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// Profile returns one user profile. A missing profile is a permanent error.
func (s *FirestoreSource) Profile(ctx context.Context, userID string) (entitycache.Profile, error) {
	var zero entitycache.Profile
	snap, err := s.client.Collection(profilesCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			s.logger.Warn().Str("user_id", userID).Msg("Profile not found in Firestore.")
			return zero, executor.Permanent(fmt.Errorf("profile %s: %w", userID, ErrNotFound))
		}
		return zero, fmt.Errorf("firestore get profile %s: %w", userID, err)
	}

	var profile entitycache.Profile
	if err := snap.DataTo(&profile); err != nil {
		return zero, executor.Permanent(fmt.Errorf("firestore DataTo for profile %s: %w", userID, err))
	}
	return profile, nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (s *FirestoreSource) Close() error {
	s.logger.Info().Msg("FirestoreSource does not close the injected Firestore client.")
	return nil
}

func collect[T any](it *firestore.DocumentIterator) ([]T, error) {
	defer it.Stop()
	var out []T
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var v T
		if err := snap.DataTo(&v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", snap.Ref.ID, err)
		}
		out = append(out, v)
	}
}
