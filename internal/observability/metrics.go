// Package observability exposes the Prometheus metrics for the service.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	trajectoryQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajectory_queries_total",
			Help: "Trajectory queries by datasource and outcome.",
		},
		[]string{"datasource", "outcome"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream database and OGC service calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	sampleCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sample_cache_results_total",
			Help: "Raster sample cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

// Trajectory query outcomes.
const (
	OutcomePoint  = "point"
	OutcomeNoData = "no_data"
	OutcomeError  = "error"
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveTrajectory(datasource, outcome string) {
	trajectoryQueriesTotal.WithLabelValues(datasource, outcome).Inc()
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncSampleCacheHit()  { sampleCacheResults.WithLabelValues("hit").Inc() }
func IncSampleCacheMiss() { sampleCacheResults.WithLabelValues("miss").Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
