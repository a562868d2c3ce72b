//go:build integration

package resource

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/wellness-sync/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
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
	require.NoError(t, err, "start Redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		client.Close()
		container.Terminate(context.Background())
	})
	return client
}

// TestDashboard_SharedRedisCache covers the full flow: the first dashboard
// fetches from the backend and writes to Redis, a second dashboard (another
// process in production) is served from Redis until the TTL passes.
func TestDashboard_SharedRedisCache(t *testing.T) {
	rdb := setupRedis(t)
	s := newTestStack(t)
	s.opts.Redis = rdb
	s.mock.SetResponse(overviewPath, testutil.NewJSONResponse(`{"total_patients": 5}`))
	ctx := context.Background()

	first := newTestDashboard(t, s)
	second := newTestDashboard(t, s)

	st := first.Fetch(ctx, false)
	require.Equal(t, StatusSuccess, st.Status)
	assert.False(t, st.FromCache)

	exists, err := rdb.Exists(ctx, "wellness:dashboard:dashboard_overview:scope=specialist-1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	st = second.Fetch(ctx, false)
	assert.True(t, st.FromCache)
	assert.Equal(t, 5, st.Data.TotalPatients)
	assert.Equal(t, 1, s.mock.GetPathCount(overviewPath))

	s.clock.Advance(DashboardTTL)
	st = second.Fetch(ctx, false)
	assert.False(t, st.FromCache, "entries at the TTL are stale")
	assert.Equal(t, 2, s.mock.GetPathCount(overviewPath))
}

// TestSlots_MutationInvalidatesSharedCache checks that a write through one
// resource drops the Redis entry every reader sees.
func TestSlots_MutationInvalidatesSharedCache(t *testing.T) {
	rdb := setupRedis(t)
	s := newTestStack(t)
	s.opts.Redis = rdb
	s.mock.SetSequence(slotsPath,
		testutil.NewJSONResponse(`[{"id":"s1","status":"available"}]`),
		testutil.NewJSONResponse(`[{"id":"s1","status":"blocked"}]`),
	)
	s.mock.SetResponse(slotsPath+"/s1/block", testutil.NewJSONResponse(`{}`))
	ctx := context.Background()

	filter := SlotFilter{DateFrom: "2026-10-19", DateTo: "2026-10-25"}
	writer, err := NewSlots(s.api, filter, s.opts)
	require.NoError(t, err)
	defer writer.Close()
	reader, err := NewSlots(s.api, filter, s.opts)
	require.NoError(t, err)
	defer reader.Close()

	writer.Load(ctx, filter, false)
	st := reader.Load(ctx, filter, false)
	require.True(t, st.FromCache)

	require.NoError(t, writer.Block(ctx, "s1", "holiday"))

	st = reader.Load(ctx, filter, false)
	require.Len(t, st.Data, 1)
	assert.Equal(t, "blocked", string(st.Data[0].Status))
	assert.Equal(t, 2, s.mock.GetPathCount(slotsPath))
}

// TestRedisStore_TTLIsBoundedByServer checks that Redis itself expires
// entries written through a resource.
func TestRedisStore_TTLIsBoundedByServer(t *testing.T) {
	rdb := setupRedis(t)
	s := newTestStack(t)
	s.opts.Redis = rdb
	s.mock.SetResponse(overviewPath, testutil.NewJSONResponse(`{}`))

	d := newTestDashboard(t, s)
	d.Fetch(context.Background(), false)

	ttl, err := rdb.TTL(context.Background(), "wellness:dashboard:dashboard_overview:scope=specialist-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, DashboardTTL)
}
