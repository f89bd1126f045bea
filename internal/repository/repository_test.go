package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"scaffold/internal/docstore"
	"scaffold/internal/kv"
)

type contact struct {
	ID        string    `bson:"_id" json:"id"`
	FirstName string    `bson:"firstName" json:"firstName"`
	LastName  string    `bson:"lastName" json:"lastName"`
	Email     string    `bson:"email" json:"email"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (c *contact) DocumentID() string      { return c.ID }
func (c *contact) SetDocumentID(id string) { c.ID = id }

func newRepo(store kv.Store) (*Repository[contact, *contact], *docstore.Memory[contact, *contact]) {
	coll := docstore.NewMemory[contact, *contact]("email")
	return New("test", coll, store, Options{}), coll
}

func TestCreateFindDeleteScenario(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, coll := newRepo(store)

	created, err := repo.Create(ctx, &contact{FirstName: "A", LastName: "B", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create left id empty")
	}

	// The new record is already cached; the lookup must not touch the store.
	queriesBefore := coll.Queries.Load()
	found, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found == nil || found.Email != "a@b.com" {
		t.Fatalf("FindByID = %+v", found)
	}
	if coll.Queries.Load() != queriesBefore {
		t.Fatal("cached FindByID queried the document store")
	}

	deleted, err := repo.DeleteByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if deleted == nil || deleted.Email != "a@b.com" {
		t.Fatalf("DeleteByID = %+v", deleted)
	}

	// Both the document and the cache entry are gone.
	if data, _ := store.Get(ctx, "test:"+created.ID); data != nil {
		t.Fatal("record cache entry survived delete")
	}
	found, err = repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID after delete: %v", err)
	}
	if found != nil {
		t.Fatalf("deleted record still found: %+v", found)
	}
}

func TestFindByIDReadThrough(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, coll := newRepo(store)

	// Insert behind the repository's back so nothing is cached yet.
	rec := &contact{Email: "x@y.com"}
	if err := coll.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	found, err := repo.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found == nil {
		t.Fatal("expected record")
	}

	// Miss populated the cache; the second read skips the store.
	queries := coll.Queries.Load()
	if _, err := repo.FindByID(ctx, rec.ID); err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if coll.Queries.Load() != queries {
		t.Fatal("second FindByID queried the document store")
	}

	// Absent ids are not negatively cached.
	if found, err := repo.FindByID(ctx, "missing"); err != nil || found != nil {
		t.Fatalf("FindByID(missing) = %+v, %v", found, err)
	}
	queries = coll.Queries.Load()
	repo.FindByID(ctx, "missing")
	if coll.Queries.Load() == queries {
		t.Fatal("absent id was negatively cached")
	}
}

func TestUpdateRefreshesCache(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, _ := newRepo(store)

	created, err := repo.Create(ctx, &contact{FirstName: "A", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := repo.UpdateByID(ctx, created.ID, map[string]any{"firstName": "Z"})
	if err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}
	if updated == nil || updated.FirstName != "Z" {
		t.Fatalf("updated = %+v", updated)
	}

	// The very next read returns the updated record, never the stale entry.
	found, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found.FirstName != "Z" {
		t.Fatalf("read pre-update value %q from cache", found.FirstName)
	}

	// Updating an absent id is a no-op, not an error.
	missing, err := repo.UpdateByID(ctx, "missing", map[string]any{"firstName": "Q"})
	if err != nil || missing != nil {
		t.Fatalf("UpdateByID(missing) = %+v, %v", missing, err)
	}
}

func TestListPaginationArithmetic(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, coll := newRepo(store)

	for i := 0; i < 25; i++ {
		err := coll.Insert(ctx, &contact{
			Email:     fmt.Sprintf("u%02d@example.com", i),
			CreatedAt: time.Date(2025, 1, 1, i, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	result, err := repo.List(ctx, ListOptions{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 25 || result.CurrentPage != 2 || result.TotalPages != 3 || result.Limit != 10 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Data) > 10 {
		t.Fatalf("page holds %d records", len(result.Data))
	}

	// Default sort is createdAt desc: page 2 starts at the 11th newest.
	if result.Data[0].Email != "u14@example.com" {
		t.Fatalf("page 2 starts at %q", result.Data[0].Email)
	}

	// Absent limit returns everything, with no page fields.
	all, err := repo.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all.Data) != 25 || all.Total != 25 || all.CurrentPage != 0 || all.TotalPages != 0 || all.Limit != 0 {
		t.Fatalf("unpaginated result = %+v", all)
	}
}

func TestListCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, coll := newRepo(store)

	if _, err := repo.Create(ctx, &contact{Email: "a@b.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := repo.List(ctx, ListOptions{Limit: 10, Page: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if first.Total != 1 {
		t.Fatalf("total = %d", first.Total)
	}

	// Same query again is served from cache.
	queries := coll.Queries.Load()
	if _, err := repo.List(ctx, ListOptions{Limit: 10, Page: 1}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if coll.Queries.Load() != queries {
		t.Fatal("repeat list queried the document store")
	}

	// A mutation invalidates: the next list reflects the new record.
	if _, err := repo.Create(ctx, &contact{Email: "c@d.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := repo.List(ctx, ListOptions{Limit: 10, Page: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if second.Total != 2 {
		t.Fatalf("post-mutation total = %d, want 2", second.Total)
	}
}

func TestListFilterDiscriminators(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, coll := newRepo(store)

	coll.Insert(ctx, &contact{Email: "a@b.com", FirstName: "A"})
	coll.Insert(ctx, &contact{Email: "c@d.com", FirstName: "C"})

	byEmail, err := repo.List(ctx, ListOptions{
		Filter: map[string]any{"email": "a@b.com"},
		Extra:  []string{"a@b.com"},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if byEmail.Total != 1 || byEmail.Data[0].FirstName != "A" {
		t.Fatalf("filtered result = %+v", byEmail)
	}

	// A different filter with its own discriminator gets its own cache entry.
	other, err := repo.List(ctx, ListOptions{
		Filter: map[string]any{"email": "c@d.com"},
		Extra:  []string{"c@d.com"},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if other.Total != 1 || other.Data[0].FirstName != "C" {
		t.Fatalf("second filter hit the first filter's cache: %+v", other)
	}
}

func TestDuplicateKeyPropagatesUncaught(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(kv.NewMemory())

	if _, err := repo.Create(ctx, &contact{Email: "a@b.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := repo.Create(ctx, &contact{Email: "a@b.com"})
	if !docstore.IsDuplicateKey(err) {
		t.Fatalf("expected duplicate-key error, got %v", err)
	}
}

// erroringStore fails every operation, standing in for an unreachable cache.
type erroringStore struct{}

var errStoreDown = errors.New("store down")

func (erroringStore) Get(context.Context, string) ([]byte, error) { return nil, errStoreDown }
func (erroringStore) Set(context.Context, string, []byte, time.Duration) error {
	return errStoreDown
}
func (erroringStore) Delete(context.Context, string) error        { return errStoreDown }
func (erroringStore) Incr(context.Context, string) (int64, error) { return 0, errStoreDown }
func (erroringStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errStoreDown
}
func (erroringStore) CompareAndDelete(context.Context, string, []byte) (bool, error) {
	return false, errStoreDown
}
func (erroringStore) DeletePattern(context.Context, string) (int64, error) {
	return 0, errStoreDown
}

func TestCacheDownDegradesToUncached(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(erroringStore{})

	created, err := repo.Create(ctx, &contact{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Create with cache down: %v", err)
	}

	found, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID with cache down: %v", err)
	}
	if found == nil || found.Email != "a@b.com" {
		t.Fatalf("FindByID = %+v", found)
	}

	result, err := repo.List(ctx, ListOptions{Limit: 10, Page: 1})
	if err != nil {
		t.Fatalf("List with cache down: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d", result.Total)
	}
}
