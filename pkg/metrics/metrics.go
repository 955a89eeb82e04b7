// Package metrics defines the Prometheus metric collectors used by the build
// pipeline and the query engine, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	DocsProcessedTotal  *prometheus.CounterVec
	FieldWritesTotal    *prometheus.CounterVec
	FieldWriteDuration  *prometheus.HistogramVec
	QueriesTotal        *prometheus.CounterVec
	QueryLatency        prometheus.Histogram
	IndexReadFailures   *prometheus.CounterVec
	QueryResultsCount   prometheus.Histogram
	FetchFailuresTotal  *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueryCacheTotal      *prometheus.CounterVec
}

// New creates all collectors and registers them on reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DocsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_documents_processed_total",
				Help: "Documents handled by the build pipeline by status (indexed, partial, failed, skipped).",
			},
			[]string{"status"},
		),
		FieldWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_field_writes_total",
				Help: "Per-index write tasks by index and result.",
			},
			[]string{"index", "result"},
		),
		FieldWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pubmed_field_write_duration_seconds",
				Help:    "Latency of one per-index write task.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"index"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_queries_total",
				Help: "Queries by outcome (ok, degraded, zero_result, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pubmed_query_latency_seconds",
				Help:    "End-to-end query latency.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		IndexReadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_index_read_failures_total",
				Help: "Query-time read failures by index.",
			},
			[]string{"index"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pubmed_query_results_count",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 20, 30},
			},
		),
		FetchFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_fetch_failures_total",
				Help: "Acquisition failures that exhausted retries, by kind (archive, crossref).",
			},
			[]string{"kind"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Requests served by the query service by method, route and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request latency of the query service.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Requests currently being served.",
			},
		),
		QueryCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_query_cache_total",
				Help: "Query cache lookups by result (hit, miss).",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.DocsProcessedTotal,
		m.FieldWritesTotal,
		m.FieldWriteDuration,
		m.QueriesTotal,
		m.QueryLatency,
		m.IndexReadFailures,
		m.QueryResultsCount,
		m.FetchFailuresTotal,
		m.CircuitBreakerState,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueryCacheTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
