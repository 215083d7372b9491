package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a crawl.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	ListingPagesTotal    prometheus.Counter
	LinksDiscoveredTotal prometheus.Counter
	ArticlesScrapedTotal prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	listingPages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_listing_pages_total",
			Help: "Total number of category listing pages fetched.",
		},
	)
	links := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_links_discovered_total",
			Help: "Total number of unique article links discovered.",
		},
	)
	articles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_articles_scraped_total",
			Help: "Total number of articles sent to the pipeline.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by phase and type.",
		},
		[]string{"phase", "error_type"},
	)

	registry.MustRegister(requests, requestDuration, listingPages, links, articles, errorsTotal)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		ListingPagesTotal:    listingPages,
		LinksDiscoveredTotal: links,
		ArticlesScrapedTotal: articles,
		ErrorsTotal:          errorsTotal,
	}
}

// IncRequest increments the requests counter for a crawl phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) IncListingPages() {
	if m == nil {
		return
	}
	m.ListingPagesTotal.Inc()
}

func (m *Metrics) IncLinks() {
	if m == nil {
		return
	}
	m.LinksDiscoveredTotal.Inc()
}

func (m *Metrics) IncArticles() {
	if m == nil {
		return
	}
	m.ArticlesScrapedTotal.Inc()
}

// IncError increments the errors counter for a phase and type label.
func (m *Metrics) IncError(phase, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(phase, errorType).Inc()
}
