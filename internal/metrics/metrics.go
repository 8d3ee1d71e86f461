// Package metrics exposes Prometheus collectors for the catalog collector and enricher.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	feedRequestsTotal          *prometheus.CounterVec
	feedRecordsTotal           prometheus.Counter
	lookupsTotal               *prometheus.CounterVec
	associationProbesTotal     *prometheus.CounterVec
	enrichTasksTotal           *prometheus.CounterVec
	catalogFilesTotal          *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	backoffDelaySeconds        *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every Observe helper calls it.
func Init() {
	once.Do(func() {
		feedRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appcatalog_feed_requests_total",
				Help: "Total number of ranked-feed requests, labeled by country and status.",
			},
			[]string{"country", "status"},
		)

		feedRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appcatalog_feed_records_total",
				Help: "Total number of new records accepted from ranked feeds.",
			},
		)

		lookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appcatalog_seller_lookups_total",
				Help: "Total number of seller lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		associationProbesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appcatalog_association_probes_total",
				Help: "Total number of app-site-association probes, labeled by path and outcome.",
			},
			[]string{"path", "outcome"},
		)

		enrichTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appcatalog_enrich_tasks_total",
				Help: "Total number of completed enrichment tasks, labeled by seller and link outcome.",
			},
			[]string{"seller", "links"},
		)

		catalogFilesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appcatalog_catalog_files_total",
				Help: "Total number of catalog files handled, labeled by operation and status.",
			},
			[]string{"operation", "status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appcatalog_active_workers",
				Help: "Number of enrichment workers currently processing a task.",
			},
		)

		backoffDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appcatalog_backoff_delay_seconds",
				Help:    "Histogram of randomized pre-request delays, labeled by source.",
				Buckets: []float64{0.5, 1, 2, 3, 4, 5, 6, 7, 10},
			},
			[]string{"source"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appcatalog_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appcatalog_http_requests_total",
				Help: "Total number of status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appcatalog_http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFeedRequest records one feed page request and how many records it yielded.
func ObserveFeedRequest(country, status string, accepted int) {
	Init()
	feedRequestsTotal.WithLabelValues(strings.ToLower(country), status).Inc()
	if accepted > 0 {
		feedRecordsTotal.Add(float64(accepted))
	}
}

// ObserveLookup records the outcome of a seller lookup.
func ObserveLookup(outcome string) {
	Init()
	lookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAssociationProbe records the outcome of one association path probe.
func ObserveAssociationProbe(path, outcome string) {
	Init()
	associationProbesTotal.WithLabelValues(path, outcome).Inc()
}

// ObserveEnrichTask records a completed enrichment task.
func ObserveEnrichTask(seller, links string) {
	Init()
	enrichTasksTotal.WithLabelValues(seller, links).Inc()
}

// ObserveCatalogFile records a catalog file read or write.
func ObserveCatalogFile(operation, status string) {
	Init()
	catalogFilesTotal.WithLabelValues(operation, status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveBackoff records a randomized pre-request delay.
func ObserveBackoff(source string, delay time.Duration) {
	Init()
	backoffDelaySeconds.WithLabelValues(source).Observe(delay.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the status server request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
