package entitycache

import "strings"

const (
	listsSegment    = "lists"
	messagesSegment = "messages"
	profilesSegment = "profiles"
	syncSegment     = "sync"
)

// keyspace builds the namespaced keys the cache owns. Every key starts with
// "<namespace>:" so unrelated data in a shared store is never touched.
type keyspace struct {
	namespace string
}

func (k keyspace) prefix() string {
	return k.namespace + ":"
}

func (k keyspace) join(segment, id string) string {
	return k.namespace + ":" + segment + ":" + id
}

func (k keyspace) list(kind Kind) string {
	return k.join(listsSegment, string(kind))
}

func (k keyspace) messages(conversationID string) string {
	return k.join(messagesSegment, conversationID)
}

func (k keyspace) profile(userID string) string {
	return k.join(profilesSegment, userID)
}

func (k keyspace) syncMarker(kind Kind) string {
	return k.join(syncSegment, string(kind))
}

func (k keyspace) owns(key string) bool {
	return strings.HasPrefix(key, k.prefix())
}

func (k keyspace) isSyncMarker(key string) bool {
	return strings.HasPrefix(key, k.prefix()+syncSegment+":")
}
