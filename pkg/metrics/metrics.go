// Package metrics exposes the Prometheus registry used by wellness-sync.
// All metrics are defined in their respective packages (client, cache,
// lifecycle, poll, ratelimit) and registered via promauto.
//
// This package provides the HTTP handler and the reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer every package registers with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Handler serves from.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - wellness_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - wellness_request_duration_seconds{endpoint} (Histogram): Logical request duration, retries included
//   - wellness_errors_total{class} (Counter): Failed attempts by class (client, auth, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - wellness_retries_total{error_class} (Counter): Retry attempts by error class
//   - wellness_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - wellness_retry_exhausted_total{error_class} (Counter): Requests that used up their retries
//
// Cache Metrics (pkg/cache):
//   - wellness_cache_hits_total{layer} (Counter): Cache hits by layer (memory, redis)
//   - wellness_cache_misses_total{layer} (Counter): Cache misses, expired entries included
//   - wellness_conditional_requests_total (Counter): GETs sent with If-None-Match / If-Modified-Since
//   - wellness_304_responses_total (Counter): 304 Not Modified responses
//   - wellness_cache_errors_total{operation} (Counter): Cache operation errors
//
// Lifecycle Metrics (pkg/lifecycle):
//   - wellness_stale_responses_dropped_total (Counter): Responses dropped as superseded or cancelled
//
// Poll Metrics (pkg/poll):
//   - wellness_poll_ticks_total{scheduler} (Counter): Poll callbacks fired
//   - wellness_poll_errors_total{scheduler} (Counter): Poll callbacks that failed
//
// Rate Limit Metrics (pkg/ratelimit):
//   - wellness_rate_limit_waits_total (Counter): Requests delayed by a Retry-After hint
//   - wellness_rate_limit_hints_total (Counter): Retry-After hints received
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(wellness_cache_hits_total[5m])) /
//	(sum(rate(wellness_cache_hits_total[5m])) + sum(rate(wellness_cache_misses_total[5m])))
//
//	# Request Error Rate by class
//	sum by (class) (rate(wellness_errors_total[5m]))
//
//	# P95 Request Latency
//	histogram_quantile(0.95, rate(wellness_request_duration_seconds_bucket[5m]))
//
//	# Stale responses per poll tick
//	rate(wellness_stale_responses_dropped_total[5m]) / sum(rate(wellness_poll_ticks_total[5m]))
