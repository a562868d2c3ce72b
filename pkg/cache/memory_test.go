package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestMemoryStore_TTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore[string](clock)
	ctx := context.Background()

	if _, err := store.Get(ctx, "k", time.Minute); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("empty store: err = %v, want ErrCacheMiss", err)
	}

	if err := store.Put(ctx, "k", "v1"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	clock.Advance(30 * time.Second)
	entry, err := store.Get(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Get within ttl: %v", err)
	}
	if entry.Value != "v1" {
		t.Errorf("Value = %q, want v1", entry.Value)
	}
	if entry.Age(clock.Now()) != 30*time.Second {
		t.Errorf("Age = %v, want 30s", entry.Age(clock.Now()))
	}

	// a shorter TTL on read treats the same entry as stale
	if _, err := store.Get(ctx, "k", 10*time.Second); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("short ttl: err = %v, want ErrCacheMiss", err)
	}

	clock.Advance(30 * time.Second)
	if _, err := store.Get(ctx, "k", time.Minute); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("at ttl: err = %v, want ErrCacheMiss", err)
	}
	if store.Len() != 1 {
		t.Errorf("stale entries stay until replaced, Len = %d", store.Len())
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore[[]int](clock)
	ctx := context.Background()

	_ = store.Put(ctx, "k", []int{1, 2})
	clock.Advance(50 * time.Second)
	_ = store.Put(ctx, "k", []int{3})

	entry, err := store.Get(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entry.Value) != 1 || entry.Value[0] != 3 {
		t.Errorf("Value = %v, want [3]", entry.Value)
	}
	if !entry.Timestamp.Equal(clock.Now()) {
		t.Errorf("Timestamp = %v, want %v", entry.Timestamp, clock.Now())
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore[int](clockwork.NewFakeClock())
	ctx := context.Background()
	_ = store.Put(ctx, "k", 1)

	entry, _ := store.Get(ctx, "k", time.Minute)
	entry.Value = 99

	again, _ := store.Get(ctx, "k", time.Minute)
	if again.Value != 1 {
		t.Errorf("stored value changed through returned entry: %d", again.Value)
	}
}

func TestMemoryStore_Invalidate(t *testing.T) {
	store := NewMemoryStore[int](clockwork.NewFakeClock())
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_ = store.Put(ctx, k, 1)
	}

	if err := store.Invalidate(ctx, "a", "missing"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := store.Get(ctx, "a", time.Minute); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("a still cached: %v", err)
	}
	if _, err := store.Get(ctx, "b", time.Minute); err != nil {
		t.Errorf("b dropped: %v", err)
	}

	if err := store.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate all: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len after full invalidate = %d", store.Len())
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore[int](nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.Put(ctx, "k", n)
				_, _ = store.Get(ctx, "k", time.Minute)
				if j%25 == 0 {
					_ = store.Invalidate(ctx, "k")
				}
			}
		}(i)
	}
	wg.Wait()
}
