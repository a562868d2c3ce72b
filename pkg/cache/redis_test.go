package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none
// is running. The integration suite starts a container instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

type overview struct {
	TotalPatients int `json:"total_patients"`
}

func TestNewRedisStore_NilClient(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore[int](nil, "x", time.Minute, nil)
}

func TestRedisStore_Key(t *testing.T) {
	store := NewRedisStore[int](redis.NewClient(&redis.Options{Addr: "localhost:0"}), "dashboard_overview", time.Minute, nil)
	if got := store.redisKey("dashboard_overview:scope=1"); got != "wellness:dashboard_overview:dashboard_overview:scope=1" {
		t.Errorf("redisKey = %q", got)
	}
}

func TestRedisStore_GetPut(t *testing.T) {
	client := setupTestRedis(t)
	clock := clockwork.NewFakeClock()
	store := NewRedisStore[overview](client, "dashboard", 10*time.Minute, clock)
	ctx := context.Background()

	if _, err := store.Get(ctx, "k", time.Minute); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("empty: err = %v, want ErrCacheMiss", err)
	}

	if err := store.Put(ctx, "k", overview{TotalPatients: 12}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, err := store.Get(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Value.TotalPatients != 12 {
		t.Errorf("TotalPatients = %d, want 12", entry.Value.TotalPatients)
	}

	clock.Advance(time.Minute)
	if _, err := store.Get(ctx, "k", time.Minute); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired: err = %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[overview](client, "dashboard", time.Minute, nil)
	ctx := context.Background()

	if err := client.Set(ctx, store.redisKey("bad"), "not json", 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Get(ctx, "bad", time.Minute); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("err = %v, want ErrInvalidEntry", err)
	}
}

func TestRedisStore_Invalidate(t *testing.T) {
	client := setupTestRedis(t)
	slots := NewRedisStore[int](client, "slots", time.Minute, nil)
	patients := NewRedisStore[int](client, "patients_list", time.Minute, nil)
	ctx := context.Background()

	_ = slots.Put(ctx, "a", 1)
	_ = slots.Put(ctx, "b", 2)
	_ = patients.Put(ctx, "a", 3)

	if err := slots.Invalidate(ctx, "a"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := slots.Get(ctx, "a", time.Minute); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("slots a still cached")
	}

	if err := slots.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate all: %v", err)
	}
	if _, err := slots.Get(ctx, "b", time.Minute); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("slots b still cached")
	}
	if _, err := patients.Get(ctx, "a", time.Minute); err != nil {
		t.Errorf("other namespace dropped: %v", err)
	}
}
