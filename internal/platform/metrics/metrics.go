package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the upload pipeline.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	errorsTotal          prometheus.Counter
	uploadsTotal         prometheus.Counter
	rebuildsTotal        prometheus.Counter
	rebuildFailuresTotal prometheus.Counter
	rebuildDuration      prometheus.Histogram
	pendingFragments     prometheus.Gauge
	documentFragments    prometheus.Gauge
}

// New creates and registers Prometheus metrics for the pipeline.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "media_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "media_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		uploadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Total number of uploads stored and enqueued",
		}),
		rebuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "media_rebuilds_total",
			Help: "Total number of fragments spliced into the document",
		}),
		rebuildFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "media_rebuild_failures_total",
			Help: "Total number of fragments dropped because the splice failed",
		}),
		rebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "media_rebuild_duration_seconds",
			Help:    "Time spent rewriting the document for one fragment",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		pendingFragments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "media_pending_fragments",
			Help: "Number of fragments waiting for the rebuild worker",
		}),
		documentFragments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "media_document_fragments",
			Help: "Number of media fragments currently in the document",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.uploadsTotal,
		m.rebuildsTotal,
		m.rebuildFailuresTotal,
		m.rebuildDuration,
		m.pendingFragments,
		m.documentFragments,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncUploads increments the accepted uploads counter.
func (m *Metrics) IncUploads() {
	m.uploadsTotal.Inc()
}

// ObserveRebuild records one splice attempt and its duration.
func (m *Metrics) ObserveRebuild(d time.Duration, err error) {
	m.rebuildDuration.Observe(d.Seconds())
	if err != nil {
		m.rebuildFailuresTotal.Inc()
		return
	}
	m.rebuildsTotal.Inc()
}

// SetPendingFragments sets the pending queue depth gauge.
func (m *Metrics) SetPendingFragments(n int) {
	m.pendingFragments.Set(float64(n))
}

// SetDocumentFragments sets the document fragment count gauge.
func (m *Metrics) SetDocumentFragments(n int) {
	m.documentFragments.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
