// Package telemetry exposes Prometheus collectors for the acquisition pipeline.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerRequestsTotal  *prometheus.CounterVec
	providerRetriesTotal   *prometheus.CounterVec
	contractsIngestedTotal *prometheus.CounterVec
	dedupDroppedTotal      prometheus.Counter
	fallbackRunsTotal      prometheus.Counter
	runDurationSeconds     prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		providerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_provider_requests_total",
				Help: "Total provider HTTP requests, labeled by provider and status code.",
			},
			[]string{"provider", "code"},
		)

		providerRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_provider_retries_total",
				Help: "Total retried provider requests, labeled by provider and reason.",
			},
			[]string{"provider", "reason"},
		)

		contractsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_contracts_ingested_total",
				Help: "Total normalized contracts accepted, labeled by provider and tier.",
			},
			[]string{"provider", "tier"},
		)

		dedupDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_dedup_dropped_total",
				Help: "Total records dropped as duplicates within a run.",
			},
		)

		fallbackRunsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_fallback_runs_total",
				Help: "Total runs that fell back to the secondary provider.",
			},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_run_duration_seconds",
				Help:    "Histogram of end-to-end acquisition run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest counts one provider HTTP response by status code.
func ObserveRequest(provider string, code int) {
	Init()
	providerRequestsTotal.WithLabelValues(provider, strconv.Itoa(code)).Inc()
}

// ObserveRetry counts one retried attempt with its trigger reason.
func ObserveRetry(provider, reason string) {
	Init()
	providerRetriesTotal.WithLabelValues(provider, reason).Inc()
}

// ObserveIngested counts accepted records by provider and tier.
func ObserveIngested(provider, tier string, n int) {
	if n <= 0 {
		return
	}
	Init()
	contractsIngestedTotal.WithLabelValues(provider, tier).Add(float64(n))
}

// ObserveDedupDrop counts a record dropped as a duplicate.
func ObserveDedupDrop() {
	Init()
	dedupDroppedTotal.Inc()
}

// ObserveFallback counts a run that invoked the secondary provider.
func ObserveFallback() {
	Init()
	fallbackRunsTotal.Inc()
}

// ObserveRunDuration records the wall-clock duration of a run.
func ObserveRunDuration(d time.Duration) {
	Init()
	runDurationSeconds.Observe(d.Seconds())
}
