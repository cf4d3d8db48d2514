package kvstore

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// lruItem is the internal structure stored in the linked list.
type lruItem struct {
	key   string
	value string
}

// LRUStore is a thread-safe, in-memory Store with a fixed number of keys
// and a Least Recently Used eviction policy. It bounds the memory a
// long-running client spends on cached entities even if nothing sweeps them.
type LRUStore struct {
	maxSize int

	mu    sync.Mutex
	ll    *list.List               // front is most recently used
	items map[string]*list.Element // fast key lookups
}

// NewLRUStore creates a new size-limited LRU store.
// maxSize is the maximum number of keys to hold and must be > 0.
func NewLRUStore(maxSize int) (*LRUStore, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("maxSize must be greater than 0")
	}
	return &LRUStore{
		maxSize: maxSize,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
	}, nil
}

// Get retrieves a value and marks the key as most recently used.
func (s *LRUStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.items[key]
	if !ok {
		return "", false, nil
	}
	s.ll.MoveToFront(elem)
	return elem.Value.(*lruItem).value, true, nil
}

// Set stores a value, evicting the least recently used key if the store is
// over capacity afterwards.
func (s *LRUStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		elem.Value.(*lruItem).value = value
		s.ll.MoveToFront(elem)
		return nil
	}

	s.items[key] = s.ll.PushFront(&lruItem{key: key, value: value})
	if s.ll.Len() > s.maxSize {
		s.evict()
	}
	return nil
}

// Remove deletes a key.
func (s *LRUStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
	return nil
}

// Keys returns every key from most to least recently used.
func (s *LRUStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, s.ll.Len())
	for e := s.ll.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*lruItem).key)
	}
	return keys, nil
}

// RemoveMany deletes every given key.
func (s *LRUStore) RemoveMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.removeLocked(k)
	}
	return nil
}

// Len reports how many keys are currently held.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// Close is a no-op for the in-memory store.
func (s *LRUStore) Close() error {
	return nil
}

func (s *LRUStore) removeLocked(key string) {
	if elem, ok := s.items[key]; ok {
		s.ll.Remove(elem)
		delete(s.items, key)
	}
}

// evict removes the least recently used item.
// Must be called with the mutex held.
func (s *LRUStore) evict() {
	if back := s.ll.Back(); back != nil {
		item := s.ll.Remove(back).(*lruItem)
		delete(s.items, item.key)
	}
}
