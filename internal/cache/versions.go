// Package cache implements the versioned caching scheme: per-entity version
// counters, a single-record cache, and a list-result cache whose keys embed
// the version current at query time. Advancing the counter makes every older
// list key unreachable, so mutations never enumerate list keys to invalidate
// them.
package cache

import (
	"context"
	"fmt"
	"strconv"

	"scaffold/internal/kv"
)

// GlobalTenant is the tenant segment used when no tenant id is supplied.
const GlobalTenant = "global"

const versionPrefix = "cache-version"

// Versions maintains one monotonically increasing counter per
// (entity, tenant) pair. The counter lives in the shared store so every
// process observes the same value; it never expires and is never decremented.
type Versions struct {
	store kv.Store
}

// NewVersions creates a version registry on the given store.
func NewVersions(store kv.Store) *Versions {
	return &Versions{store: store}
}

func tenantOrGlobal(tenant string) string {
	if tenant == "" {
		return GlobalTenant
	}
	return tenant
}

func counterKey(entity, tenant string) string {
	return kv.Key(versionPrefix, entity, tenantOrGlobal(tenant))
}

// Read returns the current counter for (entity, tenant), 0 when unset.
func (v *Versions) Read(ctx context.Context, entity, tenant string) (int64, error) {
	data, err := v.store.Get(ctx, counterKey(entity, tenant))
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cache version for %s/%s: %w", entity, tenantOrGlobal(tenant), err)
	}
	return n, nil
}

// Increment atomically bumps the counter and returns the new value. The
// increment happens at the store, so concurrent callers never lose updates.
func (v *Versions) Increment(ctx context.Context, entity, tenant string) (int64, error) {
	return v.store.Incr(ctx, counterKey(entity, tenant))
}

// VersionedKey reads the current version and builds
// "v:{version}:{tenant}:{entity}:{parts...}". The read is not atomic with any
// subsequent cache write; a bump landing in between only costs one extra miss
// on the next read, because invalidation only ever raises the version used by
// future keys.
func (v *Versions) VersionedKey(ctx context.Context, entity, tenant string, parts ...string) (string, error) {
	version, err := v.Read(ctx, entity, tenant)
	if err != nil {
		return "", err
	}
	segments := append([]string{"v", strconv.FormatInt(version, 10), tenantOrGlobal(tenant), entity}, parts...)
	return kv.Key(segments...), nil
}
