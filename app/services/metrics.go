// Package services provides technical adapters: caching, encryption, event publishing, access tracking and metrics
package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache lookups partitioned by cache namespace and result (hit, miss, error)
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuel_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"namespace", "result"},
	)

	// Configuration resolutions partitioned by source (cache, store)
	configResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fuel_configuration_resolve_duration_seconds",
			Help:    "Configuration resolution latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Price calculations partitioned by outcome
	priceCalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuel_price_calculations_total",
			Help: "Total number of price calculations",
		},
		[]string{"outcome"},
	)

	// Access-count updates dropped because the tracker queue was full
	accessTrackerDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fuel_access_tracker_dropped_total",
			Help: "Access count updates dropped by the tracker",
		},
	)

	// Access-count updates that failed in the store
	accessTrackerFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fuel_access_tracker_failed_total",
			Help: "Access count updates that failed to persist",
		},
	)

	// Events partitioned by publisher and result
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuel_events_published_total",
			Help: "Total number of domain events handed to a publisher",
		},
		[]string{"publisher", "result"},
	)
)

// ObserveCacheLookup records a cache hit, miss or error for namespace.
func ObserveCacheLookup(namespace, result string) {
	cacheLookupsTotal.WithLabelValues(namespace, result).Inc()
}

// ObserveConfigResolve records how long a resolution took and where it was served from.
func ObserveConfigResolve(source string, seconds float64) {
	configResolveDuration.WithLabelValues(source).Observe(seconds)
}

// ObservePriceCalculation records a calculation outcome (cached, computed, not_found, error).
func ObservePriceCalculation(outcome string) {
	priceCalculationsTotal.WithLabelValues(outcome).Inc()
}

func observeEvent(publisher, result string) {
	eventsPublishedTotal.WithLabelValues(publisher, result).Inc()
}
