package entitycache

import "time"

// Kind names a class of synchronised data. It selects the list namespace for
// WriteList/ReadList and the marker for MarkSynced/LastSyncedAt.
type Kind string

const (
	KindConversations Kind = "conversations"
	KindMessages      Kind = "messages"
	KindProfiles      Kind = "profiles"
)

// ConversationSummary is one row of the inbox: a direct chat, a group, or a
// marketplace listing thread.
type ConversationSummary struct {
	ID                 string    `json:"id" firestore:"id"`
	Title              string    `json:"title" firestore:"title"`
	ParticipantIDs     []string  `json:"participantIds" firestore:"participantIds"`
	LastMessagePreview string    `json:"lastMessagePreview,omitempty" firestore:"lastMessagePreview"`
	LastMessageAt      time.Time `json:"lastMessageAt" firestore:"lastMessageAt"`
	UnreadCount        int       `json:"unreadCount" firestore:"unreadCount"`
	ListingID          string    `json:"listingId,omitempty" firestore:"listingId,omitempty"`
}

// Message is a single chat message. Message pages are ordered oldest first.
type Message struct {
	ID             string    `json:"id" firestore:"id"`
	ConversationID string    `json:"conversationId" firestore:"conversationId"`
	SenderID       string    `json:"senderId" firestore:"senderId"`
	Body           string    `json:"body" firestore:"body"`
	MediaURL       string    `json:"mediaUrl,omitempty" firestore:"mediaUrl,omitempty"`
	SentAt         time.Time `json:"sentAt" firestore:"sentAt"`
}

// Profile is the public record of a user.
type Profile struct {
	UserID      string    `json:"userId" firestore:"userId"`
	DisplayName string    `json:"displayName" firestore:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty" firestore:"avatarUrl,omitempty"`
	Bio         string    `json:"bio,omitempty" firestore:"bio,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Entry is the stored envelope around every cached payload.
type Entry[T any] struct {
	StoredAt time.Time `json:"storedAt"`
	Payload  T         `json:"payload"`
}

// Expired reports whether the entry is older than ttl at now.
// An entry exactly ttl old is still valid.
func (e Entry[T]) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) > ttl
}
