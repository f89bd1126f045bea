package cache

import (
	"context"
	"encoding/json"
	"time"

	"scaffold/internal/kv"
)

// DefaultRecordTTL is how long a cached single record lives.
const DefaultRecordTTL = 20 * time.Minute

// Records is the single-record cache. Entries are keyed "{entity}:{id}" and
// hold the full serialized record; a set always replaces the whole entry.
type Records struct {
	store kv.Store
}

// NewRecords creates a record cache on the given store.
func NewRecords(store kv.Store) *Records {
	return &Records{store: store}
}

// RecordKey returns the cache key for a single record.
func RecordKey(entity, id string) string {
	return kv.Key(entity, id)
}

// Get unmarshals the cached record into out and reports whether an entry was
// found. A corrupt entry is treated as a miss.
func (r *Records) Get(ctx context.Context, entity, id string, out any) (bool, error) {
	data, err := r.store.Get(ctx, RecordKey(entity, id))
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, nil
	}
	return true, nil
}

// Set stores the full record under "{entity}:{id}".
func (r *Records) Set(ctx context.Context, entity, id string, record any, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	return r.store.Set(ctx, RecordKey(entity, id), data, ttl)
}

// Delete removes the cached record.
func (r *Records) Delete(ctx context.Context, entity, id string) error {
	return r.store.Delete(ctx, RecordKey(entity, id))
}
