// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbesTotal counts outbound probes by edition and outcome.
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusd_probes_total",
		Help: "Outbound game-server probes by edition and outcome.",
	}, []string{"edition", "outcome"})

	// ProbeDuration observes wall time of outbound probes.
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statusd_probe_duration_seconds",
		Help:    "Duration of outbound game-server probes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"edition"})

	// CacheHits counts lookups served from a fresh cache entry.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statusd_cache_hits_total",
		Help: "Status lookups answered from the cache.",
	})

	// CacheMisses counts lookups that required a probe.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statusd_cache_misses_total",
		Help: "Status lookups that missed the cache or found it stale.",
	})

	// FlightsShared counts callers that joined another caller's in-flight probe.
	FlightsShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statusd_flights_shared_total",
		Help: "Lookups coalesced into an already in-flight probe.",
	})

	// RateLimited counts rejected public lookups.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statusd_rate_limited_total",
		Help: "Public lookups rejected by the fixed-window limiter.",
	})

	// RequestsTotal counts handled HTTP requests.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusd_http_requests_total",
		Help: "Handled HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})
)

// ObserveProbe records one outbound probe result.
func ObserveProbe(edition string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProbesTotal.WithLabelValues(edition, outcome).Inc()
	ProbeDuration.WithLabelValues(edition).Observe(elapsed.Seconds())
}
