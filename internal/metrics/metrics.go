// Package metrics exposes Prometheus collectors for the engine.
package metrics

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
	crawlAttemptsTotal         *prometheus.CounterVec
	fetchRetriesTotal          *prometheus.CounterVec
	jobsResolvedTotal          *prometheus.CounterVec
	observationsRecordedTotal  *prometheus.CounterVec
	recordsSkippedTotal        *prometheus.CounterVec
	skillsAttachedTotal        prometheus.Counter
	crawlCycleDurationSeconds  prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_crawl_attempts_total",
				Help: "Total number of crawl attempts, labeled by site and terminal status.",
			},
			[]string{"site", "status"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_fetch_retries_total",
				Help: "Total number of fetch retries, labeled by site.",
			},
			[]string{"site"},
		)

		jobsResolvedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_jobs_resolved_total",
				Help: "Total number of listing cards resolved, labeled by outcome (new or existing).",
			},
			[]string{"outcome"},
		)

		observationsRecordedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_observations_recorded_total",
				Help: "Total number of observations appended, labeled by site.",
			},
			[]string{"site"},
		)

		recordsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_records_skipped_total",
				Help: "Total number of listing cards skipped after a processing failure, labeled by site.",
			},
			[]string{"site"},
		)

		skillsAttachedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_skills_attached_total",
				Help: "Total number of skill links attached to jobs.",
			},
		)

		crawlCycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engine_crawl_cycle_duration_seconds",
				Help:    "Histogram of full crawl cycle durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAttempt increments the attempt counter for a terminal status.
func ObserveAttempt(site, status string) {
	crawlAttemptsTotal.WithLabelValues(site, status).Inc()
}

// ObserveFetchRetry increments the retry counter for a site.
func ObserveFetchRetry(site string) {
	fetchRetriesTotal.WithLabelValues(site).Inc()
}

// ObserveResolution increments the resolution counter for an outcome.
func ObserveResolution(outcome string) {
	jobsResolvedTotal.WithLabelValues(outcome).Inc()
}

// ObserveObservation increments the observation counter for a site.
func ObserveObservation(site string) {
	observationsRecordedTotal.WithLabelValues(site).Inc()
}

// ObserveRecordSkipped increments the skipped-card counter for a site.
func ObserveRecordSkipped(site string) {
	recordsSkippedTotal.WithLabelValues(site).Inc()
}

// ObserveSkillsAttached adds newly attached skill links.
func ObserveSkillsAttached(n int) {
	if n > 0 {
		skillsAttachedTotal.Add(float64(n))
	}
}

// ObserveCycleDuration records the duration of one full crawl cycle.
func ObserveCycleDuration(d time.Duration) {
	crawlCycleDurationSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
