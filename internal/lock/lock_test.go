package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scaffold/internal/kv"
)

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	locker := New(kv.NewMemory())

	token, ok, err := locker.Acquire(ctx, "lock:op:key1", 30*time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok || token == "" {
		t.Fatalf("Acquire = (%q, %v), want token and true", token, ok)
	}

	// Held lock rejects a second acquirer.
	_, ok, _ = locker.Acquire(ctx, "lock:op:key1", 30*time.Second)
	if ok {
		t.Fatal("second Acquire succeeded while lock held")
	}

	released, err := locker.Release(ctx, "lock:op:key1", token)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !released {
		t.Fatal("owner release reported false")
	}

	_, ok, _ = locker.Acquire(ctx, "lock:op:key1", 30*time.Second)
	if !ok {
		t.Fatal("Acquire failed after release")
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	ctx := context.Background()
	locker := New(kv.NewMemory())

	const attempts = 32
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := locker.Acquire(ctx, "lock:contended", 30*time.Second)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("%d acquirers won, want exactly 1", got)
	}
}

func TestReleaseRequiresOwnerToken(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	locker := New(store)

	token, ok, _ := locker.Acquire(ctx, "lock:owned", 30*time.Second)
	if !ok {
		t.Fatal("Acquire failed")
	}

	released, err := locker.Release(ctx, "lock:owned", "not-the-token")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released {
		t.Fatal("release succeeded with a foreign token")
	}

	// Still held by the real owner.
	_, ok, _ = locker.Acquire(ctx, "lock:owned", 30*time.Second)
	if ok {
		t.Fatal("lock was freed by a foreign release")
	}

	if released, _ = locker.Release(ctx, "lock:owned", token); !released {
		t.Fatal("owner release failed")
	}
}

func TestExpiredLockChangesHands(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	now := time.Now()
	store.Now = func() time.Time { return now }
	locker := New(store)

	staleToken, ok, _ := locker.Acquire(ctx, "lock:slow", 30*time.Second)
	if !ok {
		t.Fatal("Acquire failed")
	}

	// The first holder outlives its TTL; a duplicate request takes over.
	now = now.Add(31 * time.Second)
	freshToken, ok, _ := locker.Acquire(ctx, "lock:slow", 30*time.Second)
	if !ok {
		t.Fatal("Acquire failed after TTL expiry")
	}

	// The stale holder's late release must not free the new holder's lock.
	released, _ := locker.Release(ctx, "lock:slow", staleToken)
	if released {
		t.Fatal("stale token released the re-acquired lock")
	}
	if released, _ = locker.Release(ctx, "lock:slow", freshToken); !released {
		t.Fatal("new holder could not release")
	}
}
