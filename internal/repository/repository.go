// Package repository composes the document store with the versioned cache:
// reads go through the cache, every mutation bumps the entity's version
// counter so stale list entries become unreachable, and the record cache is
// refreshed or evicted in place. The document store stays the source of
// truth; cache failures degrade to uncached behavior and never surface to
// callers.
package repository

import (
	"context"
	"log/slog"
	"time"

	"scaffold/internal/cache"
	"scaffold/internal/docstore"
	"scaffold/internal/kv"
)

// Result is a list query's outcome. CurrentPage, TotalPages, and Limit are
// only set for paginated queries.
type Result[T any] struct {
	Data        []T   `json:"data"`
	Total       int64 `json:"total"`
	CurrentPage int   `json:"currentPage,omitempty"`
	TotalPages  int   `json:"totalPages,omitempty"`
	Limit       int   `json:"limit,omitempty"`
}

// ListOptions describe a list query. Extra must carry every filter value that
// narrows the result set, so it lands in the cache key; a filter left out of
// Extra causes stale hits.
type ListOptions struct {
	Page   int
	Limit  int
	Sort   string
	Order  string
	Filter map[string]any
	Extra  []string
}

// Options tune a repository.
type Options struct {
	// Tenant scopes the version counter and cache keys; empty means global.
	Tenant string

	// RecordTTL and ListTTL override the cache entry lifetimes.
	RecordTTL time.Duration
	ListTTL   time.Duration
}

// Repository is a cache-backed view of one entity's collection.
type Repository[T any, PT docstore.Doc[T]] struct {
	entity string
	tenant string
	coll   docstore.Collection[T, PT]

	versions *cache.Versions
	records  *cache.Records
	lists    *cache.Lists

	recordTTL time.Duration
	listTTL   time.Duration
}

// New creates a repository for entity on the given collection and cache
// store.
func New[T any, PT docstore.Doc[T]](entity string, coll docstore.Collection[T, PT], store kv.Store, opts Options) *Repository[T, PT] {
	versions := cache.NewVersions(store)
	recordTTL := opts.RecordTTL
	if recordTTL <= 0 {
		recordTTL = cache.DefaultRecordTTL
	}
	listTTL := opts.ListTTL
	if listTTL <= 0 {
		listTTL = cache.DefaultListTTL
	}
	return &Repository[T, PT]{
		entity:    entity,
		tenant:    opts.Tenant,
		coll:      coll,
		versions:  versions,
		records:   cache.NewRecords(store),
		lists:     cache.NewLists(store, versions),
		recordTTL: recordTTL,
		listTTL:   listTTL,
	}
}

// Create inserts the record, caches it under its new id, and invalidates the
// entity's list caches. Document-store errors propagate with the cache left
// untouched.
func (r *Repository[T, PT]) Create(ctx context.Context, record PT) (PT, error) {
	if err := r.coll.Insert(ctx, record); err != nil {
		return nil, err
	}
	if err := r.records.Set(ctx, r.entity, record.DocumentID(), record, r.recordTTL); err != nil {
		slog.Warn("record cache set failed", "entity", r.entity, "id", record.DocumentID(), "error", err)
	}
	r.invalidateLists(ctx)
	return record, nil
}

// FindByID is a read-through lookup: cache hit returns immediately, a miss
// queries the document store and populates the cache. Absent records return
// nil, nil and are not negatively cached.
func (r *Repository[T, PT]) FindByID(ctx context.Context, id string) (PT, error) {
	var cached T
	hit, err := r.records.Get(ctx, r.entity, id, &cached)
	if err != nil {
		slog.Warn("record cache get failed", "entity", r.entity, "id", id, "error", err)
	}
	if hit {
		cacheHits.WithLabelValues(r.entity, "record").Inc()
		return PT(&cached), nil
	}
	cacheMisses.WithLabelValues(r.entity, "record").Inc()

	record, err := r.coll.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if err := r.records.Set(ctx, r.entity, id, record, r.recordTTL); err != nil {
		slog.Warn("record cache set failed", "entity", r.entity, "id", id, "error", err)
	}
	return record, nil
}

// UpdateByID applies a field update. On success the cached record is
// refreshed and list caches invalidated; nil, nil means no record matched.
func (r *Repository[T, PT]) UpdateByID(ctx context.Context, id string, fields map[string]any) (PT, error) {
	record, err := r.coll.UpdateByID(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if err := r.records.Set(ctx, r.entity, id, record, r.recordTTL); err != nil {
		slog.Warn("record cache set failed", "entity", r.entity, "id", id, "error", err)
	}
	r.invalidateLists(ctx)
	return record, nil
}

// DeleteByID removes the record, evicts its cache entry, and invalidates list
// caches. The deleted record is returned so callers can clean up anything
// hanging off its fields; nil, nil means nothing was deleted.
func (r *Repository[T, PT]) DeleteByID(ctx context.Context, id string) (PT, error) {
	record, err := r.coll.DeleteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if err := r.records.Delete(ctx, r.entity, id); err != nil {
		slog.Warn("record cache delete failed", "entity", r.entity, "id", id, "error", err)
	}
	r.invalidateLists(ctx)
	return record, nil
}

// List runs a cached list query. The cache key embeds the entity version
// current at query time, so any mutation's version bump makes this entry
// unreachable to later readers.
func (r *Repository[T, PT]) List(ctx context.Context, opts ListOptions) (*Result[T], error) {
	key, err := r.lists.Key(ctx, r.entity, r.tenant, cache.ListParams{
		Page:  opts.Page,
		Limit: opts.Limit,
		Sort:  opts.Sort,
		Order: opts.Order,
		Extra: opts.Extra,
	})
	if err != nil {
		slog.Warn("list cache key build failed", "entity", r.entity, "error", err)
		key = ""
	}

	if key != "" {
		var cached Result[T]
		hit, err := r.lists.Get(ctx, key, &cached)
		if err != nil {
			slog.Warn("list cache get failed", "entity", r.entity, "error", err)
		}
		if hit {
			cacheHits.WithLabelValues(r.entity, "list").Inc()
			return &cached, nil
		}
		cacheMisses.WithLabelValues(r.entity, "list").Inc()
	}

	result, err := r.query(ctx, opts)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := r.lists.Set(ctx, key, result, r.listTTL); err != nil {
			slog.Warn("list cache set failed", "entity", r.entity, "error", err)
		}
	}
	return result, nil
}

// query runs the uncached list query. Absent limit returns every match with
// the total count; otherwise offset = (currentPage-1)*limit and
// totalPages = ceil(total/limit).
func (r *Repository[T, PT]) query(ctx context.Context, opts ListOptions) (*Result[T], error) {
	total, err := r.coll.Count(ctx, opts.Filter)
	if err != nil {
		return nil, err
	}

	sortField := opts.Sort
	if sortField == "" {
		sortField = "createdAt"
	}
	q := docstore.Query{
		Filter: opts.Filter,
		Sort:   &docstore.Sort{Field: sortField, Desc: opts.Order != "asc"},
	}

	if opts.Limit <= 0 {
		rows, err := r.coll.Find(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Result[T]{Data: deref(rows), Total: total}, nil
	}

	currentPage := max(opts.Page, 1)
	limit := max(opts.Limit, 1)
	q.Skip = int64(currentPage-1) * int64(limit)
	q.Limit = int64(limit)

	rows, err := r.coll.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Result[T]{
		Data:        deref(rows),
		Total:       total,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		Limit:       limit,
	}, nil
}

// invalidateLists bumps the entity version and eagerly evicts existing list
// entries. The bump is what guarantees coherence; a failed bump is an error
// because list caches would then serve stale data until TTL.
func (r *Repository[T, PT]) invalidateLists(ctx context.Context) {
	if _, err := r.versions.Increment(ctx, r.entity, r.tenant); err != nil {
		slog.Error("cache version bump failed, list caches stale until TTL",
			"entity", r.entity, "tenant", r.tenant, "error", err)
	}
	if _, err := r.lists.Invalidate(ctx, r.entity, r.tenant); err != nil {
		slog.Warn("eager list eviction failed", "entity", r.entity, "error", err)
	}
}

func deref[T any, PT docstore.Doc[T]](rows []PT) []T {
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = *row
	}
	return out
}
