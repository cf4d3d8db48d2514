// Package kvstore provides the persistent key-value providers that back the
// entity cache. Every implementation stores opaque string values under string
// keys and is safe for concurrent use.
package kvstore

import (
	"context"
	"io"
)

// Store is the contract for a raw key-value provider. Implementations return
// provider-specific errors; callers that must never fail (such as the entity
// cache) are expected to contain them.
type Store interface {
	// Get returns (value, true, nil) on hit and ("", false, nil) on miss.
	// An IO or remote failure returns ("", false, err).
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or fully replaces the value stored under key.
	Set(ctx context.Context, key, value string) error
	// Remove deletes a key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys lists every key currently held by the provider.
	Keys(ctx context.Context) ([]string, error)
	// RemoveMany deletes all the given keys, ignoring absent ones.
	RemoveMany(ctx context.Context, keys []string) error
	// Closer is included for implementations that manage connections or files.
	io.Closer
}
