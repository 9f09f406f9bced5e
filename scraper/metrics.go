package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the generation pipeline.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	PagesDiscovered    prometheus.Histogram
	PagesScrapedTotal  prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	UpstreamDuration   *prometheus.HistogramVec
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dottxt_http_requests_total",
			Help: "HTTP requests served, by endpoint mode and status code.",
		},
		[]string{"mode", "code"},
	)
	discovered := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dottxt_pages_discovered",
			Help:    "Number of page URLs returned by discovery per request.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)
	scraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dottxt_pages_scraped_total",
			Help: "Total number of pages scraped successfully.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dottxt_scrape_errors_total",
			Help: "Total number of skipped page scrapes by error type.",
		},
		[]string{"error_type"},
	)
	upstream := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dottxt_upstream_request_duration_seconds",
			Help:    "Latency of calls to the discovery, scraping and completion services.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	generations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dottxt_generations_total",
			Help: "Pipeline runs by document mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	generationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dottxt_generation_duration_seconds",
			Help:    "End-to-end pipeline duration.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	registry.MustRegister(requests, discovered, scraped, errorsTotal, upstream, generations, generationDuration)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		PagesDiscovered:    discovered,
		PagesScrapedTotal:  scraped,
		ErrorsTotal:        errorsTotal,
		UpstreamDuration:   upstream,
		GenerationsTotal:   generations,
		GenerationDuration: generationDuration,
	}
}

// IncRequest counts a served HTTP request.
func (m *Metrics) IncRequest(mode string, code int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(mode, statusLabel(code)).Inc()
}

// ObserveDiscovered records the size of a discovery result.
func (m *Metrics) ObserveDiscovered(n int) {
	if m == nil {
		return
	}
	m.PagesDiscovered.Observe(float64(n))
}

// IncPages increments the pages scraped counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesScrapedTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveUpstream records the latency of one collaborator call.
func (m *Metrics) ObserveUpstream(service string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(service).Observe(d.Seconds())
}

// ObserveGeneration records the outcome and duration of a pipeline run.
func (m *Metrics) ObserveGeneration(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(mode, outcome).Inc()
	m.GenerationDuration.Observe(d.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
