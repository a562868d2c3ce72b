// Package cache provides the TTL cache that keeps resources from refetching
// data that is still fresh.
//
// A Store holds one Entry per key. An entry satisfies a read only while it
// is younger than the TTL passed to Get; Put always replaces the previous
// entry (last writer wins). Two stores are provided:
//
//   - MemoryStore: in-process, the default for a single consumer
//   - RedisStore: JSON entries in Redis, shared between processes
//
// # Basic Usage
//
//	store := cache.NewMemoryStore[models.DashboardOverview](nil)
//
//	key := cache.Key{Name: "dashboard_overview"}.String()
//	entry, err := store.Get(ctx, key, 5*time.Minute)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// stale or absent - fetch from the backend
//	}
//
//	_ = store.Put(ctx, key, overview)
//	_ = store.Invalidate(ctx) // drop everything
//
// # Conditional Requests
//
// Validators remember the ETag or Last-Modified of GET responses so the
// client can revalidate with If-None-Match and answer a 304 locally:
//
//	if v := validators.Get(url); v != nil {
//		cache.AddConditionalHeaders(req, v)
//	}
//
// # Metrics
//
//   - wellness_cache_hits_total{layer} - Cache hits
//   - wellness_cache_misses_total{layer} - Cache misses (absent or stale)
//   - wellness_conditional_requests_total - Conditional GETs sent
//   - wellness_304_responses_total - 304 Not Modified responses
//   - wellness_cache_errors_total{operation} - Cache operation errors
package cache
