// Package metrics declares the Prometheus instruments for library sync,
// the cache layer and the photo-host client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncState is the numeric LibrarySync state (see librarysync.State).
	SyncState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "travelogue_sync_state",
			Help: "Current library sync state",
		},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelogue_sync_runs_total",
			Help: "Library load pipelines by how they were satisfied",
		},
		[]string{"outcome"}, // "cache_hit", "source", "cache_corrupt"
	)

	LibraryPosts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "travelogue_library_posts",
			Help: "Posts in the published library",
		},
	)

	PostsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelogue_posts_dropped_total",
			Help: "Posts removed because the source reported them permanently missing",
		},
	)

	HydrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "travelogue_hydration_duration_seconds",
			Help:    "Time to load detail for every post",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelogue_source_requests_total",
			Help: "Photo host requests by operation and result",
		},
		[]string{"operation", "result"}, // result: "success", "transient", "permanent"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "travelogue_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CacheFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelogue_cache_failovers_total",
			Help: "Times the cache helper switched to the in-memory provider",
		},
	)

	CacheReplayedWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelogue_cache_replayed_writes_total",
			Help: "Queued writes replayed against the in-memory provider after failover",
		},
	)
)
