package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"scaffold/internal/kv"
)

// DefaultListTTL is how long a cached list result lives. List entries are
// never deleted individually; they become unreachable once the entity's
// version counter advances.
const DefaultListTTL = 15 * time.Minute

// maxDiscriminatorLen bounds a single extra filter value's contribution to a
// list key; longer values are fingerprinted.
const maxDiscriminatorLen = 32

// ListParams are the discriminators embedded in a list cache key. Extra
// carries every caller-supplied filter value that affects the result set;
// omitting one causes stale hits. That contract is the caller's to keep.
type ListParams struct {
	Page  int
	Limit int
	Sort  string
	Order string
	Extra []string
}

// Lists is the list-result cache, built on the version registry.
type Lists struct {
	store    kv.Store
	versions *Versions
}

// NewLists creates a list cache on the given store and version registry.
func NewLists(store kv.Store, versions *Versions) *Lists {
	return &Lists{store: store, versions: versions}
}

// fingerprint shortens a discriminator that would blow up the key, keeping it
// deterministic across processes.
func fingerprint(s string) string {
	if len(s) <= maxDiscriminatorLen {
		return s
	}
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)[:16]
}

// Key builds the versioned cache key for a list query. Paginated queries key
// on (page, limit, sort, order, extra...); unpaginated ones replace page and
// limit with "all".
func (l *Lists) Key(ctx context.Context, entity, tenant string, p ListParams) (string, error) {
	sort := p.Sort
	if sort == "" {
		sort = "createdAt"
	}
	order := p.Order
	if order != "asc" {
		order = "desc"
	}

	parts := []string{"list"}
	if p.Limit > 0 {
		page := p.Page
		if page < 1 {
			page = 1
		}
		parts = append(parts, strconv.Itoa(page), strconv.Itoa(p.Limit), sort, order)
	} else {
		parts = append(parts, "all", sort, order)
	}
	for _, extra := range p.Extra {
		parts = append(parts, fingerprint(extra))
	}

	return l.versions.VersionedKey(ctx, entity, tenant, parts...)
}

// Get unmarshals the cached list result into out and reports whether an entry
// was found.
func (l *Lists) Get(ctx context.Context, key string, out any) (bool, error) {
	data, err := l.store.Get(ctx, key)
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

// Set stores a list result under its versioned key.
func (l *Lists) Set(ctx context.Context, key string, result any, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return l.store.Set(ctx, key, data, ttl)
}

// Invalidate pattern-deletes every list entry for the entity regardless of
// version. The version bump already makes old entries unreachable; this is
// the eager fallback that frees them immediately.
func (l *Lists) Invalidate(ctx context.Context, entity, tenant string) (int64, error) {
	pattern := kv.Key("v", "*", tenantOrGlobal(tenant), entity, "list*")
	return l.store.DeletePattern(ctx, pattern)
}
