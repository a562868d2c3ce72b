package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellness_cache_hits_total",
			Help: "Total number of resource cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses (absent or stale) by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellness_cache_misses_total",
			Help: "Total number of resource cache misses",
		},
		[]string{"layer"},
	)

	// ConditionalRequestsSent tracks GETs sent with If-None-Match/If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wellness_conditional_requests_total",
			Help: "Total number of conditional GET requests sent",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wellness_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellness_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
