package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	SKUsTotal       *prometheus.CounterVec
	WorkersInFlight prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper, by fetch kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency by fetch kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts by fetch kind.",
		},
		[]string{"kind"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of failed fetch attempts by error type.",
		},
		[]string{"error_type"},
	)
	skus := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_skus_total",
			Help: "Identifiers processed, by outcome.",
		},
		[]string{"outcome"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_workers_in_flight",
			Help: "Record builds currently executing.",
		},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, skus, inFlight)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		SKUsTotal:       skus,
		WorkersInFlight: inFlight,
	}
}

// IncRequest counts one finished request of kind.
func (m *Metrics) IncRequest(kind, outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries(kind string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(kind).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncSKU counts one identifier outcome.
func (m *Metrics) IncSKU(outcome Outcome) {
	if m == nil {
		return
	}
	m.SKUsTotal.WithLabelValues(outcome.String()).Inc()
}

// WorkerStarted marks a record build as running.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.WorkersInFlight.Inc()
}

// WorkerDone marks a record build as finished.
func (m *Metrics) WorkerDone() {
	if m == nil {
		return
	}
	m.WorkersInFlight.Dec()
}
