package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	got, err := store.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %q", got)
	}

	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = store.Get(ctx, "k")
	if got != nil {
		t.Fatalf("expected nil after delete, got %q", got)
	}
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Now()
	store.Now = func() time.Time { return now }

	if err := store.Set(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(29 * time.Second)
	if got, _ := store.Get(ctx, "k"); got == nil {
		t.Fatal("key expired too early")
	}

	now = now.Add(2 * time.Second)
	if got, _ := store.Get(ctx, "k"); got != nil {
		t.Fatalf("key should have expired, got %q", got)
	}
}

func TestMemoryIncr(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	for want := int64(1); want <= 3; want++ {
		n, err := store.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if n != want {
			t.Fatalf("Incr = %d, want %d", n, want)
		}
	}

	if err := store.Set(ctx, "text", []byte("abc"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := store.Incr(ctx, "text"); err == nil {
		t.Fatal("expected error incrementing non-integer value")
	}
}

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Now()
	store.Now = func() time.Time { return now }

	ok, err := store.SetNX(ctx, "lock", []byte("a"), 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("first SetNX = %v, %v; want true, nil", ok, err)
	}
	ok, _ = store.SetNX(ctx, "lock", []byte("b"), 30*time.Second)
	if ok {
		t.Fatal("second SetNX succeeded while key held")
	}

	// After expiry the key is free again.
	now = now.Add(31 * time.Second)
	ok, _ = store.SetNX(ctx, "lock", []byte("b"), 30*time.Second)
	if !ok {
		t.Fatal("SetNX failed after previous value expired")
	}
}

func TestMemoryCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	store.Set(ctx, "lock", []byte("token-a"), 0)

	ok, err := store.CompareAndDelete(ctx, "lock", []byte("token-b"))
	if err != nil {
		t.Fatalf("CompareAndDelete: %v", err)
	}
	if ok {
		t.Fatal("deleted with mismatched value")
	}
	if got, _ := store.Get(ctx, "lock"); got == nil {
		t.Fatal("key removed despite mismatch")
	}

	ok, _ = store.CompareAndDelete(ctx, "lock", []byte("token-a"))
	if !ok {
		t.Fatal("matching CompareAndDelete did not delete")
	}
}

func TestMemoryDeletePattern(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	store.Set(ctx, "v:1:global:test:list:1:10", []byte("a"), 0)
	store.Set(ctx, "v:2:global:test:list:all", []byte("b"), 0)
	store.Set(ctx, "test:some-id", []byte("c"), 0)

	n, err := store.DeletePattern(ctx, "v:*:global:test:list*")
	if err != nil {
		t.Fatalf("DeletePattern: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d keys, want 2", n)
	}
	if got, _ := store.Get(ctx, "test:some-id"); got == nil {
		t.Fatal("unrelated key was deleted")
	}
}
