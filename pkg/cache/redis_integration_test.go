//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a throwaway Redis for the integration suite.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		client.Close()
		container.Terminate(context.Background())
	})
	return client
}

// TestRedisStore_SharedBetweenStores checks that two stores on the same
// namespace (two processes in production) see each other's snapshots and
// that Redis drops entries after maxTTL.
func TestRedisStore_SharedBetweenStores(t *testing.T) {
	client := setupRedisContainer(t)
	ctx := context.Background()

	writer := NewRedisStore[overview](client, "dashboard_overview", 2*time.Second, nil)
	reader := NewRedisStore[overview](client, "dashboard_overview", 2*time.Second, nil)

	if err := writer.Put(ctx, "dashboard_overview:scope=7", overview{TotalPatients: 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, err := reader.Get(ctx, "dashboard_overview:scope=7", 5*time.Minute)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Value.TotalPatients != 3 {
		t.Errorf("TotalPatients = %d, want 3", entry.Value.TotalPatients)
	}

	ttl, err := client.TTL(ctx, writer.redisKey("dashboard_overview:scope=7")).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > 2*time.Second {
		t.Errorf("redis TTL = %v, want (0, 2s]", ttl)
	}

	time.Sleep(2500 * time.Millisecond)
	if _, err := reader.Get(ctx, "dashboard_overview:scope=7", 5*time.Minute); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("after maxTTL: err = %v, want ErrCacheMiss", err)
	}
}
