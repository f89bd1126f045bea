// Package kv abstracts the shared key/value store the cache layer runs on.
// The production implementation is Redis; an in-process implementation backs
// unit tests.
package kv

import (
	"context"
	"strings"
	"time"
)

// Store is the operation surface the cache, lock, and idempotency layers
// consume. A zero ttl means the key does not expire.
type Store interface {
	// Get returns the value for key, or nil with no error when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key with the given ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the integer at key and returns the new value.
	// An absent key is treated as 0.
	Incr(ctx context.Context, key string) (int64, error)

	// SetNX writes value under key only if the key is absent, with the given
	// ttl. It reports whether this call created the key.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndDelete removes key only if its current value equals value.
	// It reports whether the key was deleted. The comparison and delete are
	// atomic at the store.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)

	// DeletePattern removes every key matching the glob-style pattern and
	// returns the number of keys deleted.
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// Key joins parts into a single colon-separated key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
