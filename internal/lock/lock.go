// Package lock provides a distributed lock on the shared key/value store.
// Mutual exclusion comes from the store's conditional set-if-absent; the TTL
// bounds how long a crashed holder can block others.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"scaffold/internal/kv"
)

// DefaultTTL is the lock lifetime when callers pass no explicit TTL.
const DefaultTTL = 30 * time.Second

// Locker acquires and releases locks keyed by arbitrary strings. Each
// acquisition is tagged with a random owner token; release is a no-op unless
// the caller presents the token it acquired with, so a holder can never
// delete a lock it lost to TTL expiry and re-acquisition.
type Locker struct {
	store kv.Store
}

// New creates a Locker on the given store.
func New(store kv.Store) *Locker {
	return &Locker{store: store}
}

// Acquire attempts to take the lock for ttl. On success it returns the owner
// token to release with and true. It returns false when another holder
// already holds the key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, []byte(token), ttl)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if token still owns it. Releasing a lock that
// expired or changed hands reports false without touching the key.
func (l *Locker) Release(ctx context.Context, key, token string) (bool, error) {
	return l.store.CompareAndDelete(ctx, key, []byte(token))
}
