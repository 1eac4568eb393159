package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog
	CatalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlist_catalog_lookups_total",
			Help: "Catalog provider lookups by outcome",
		},
		[]string{"provider", "outcome"}, // "hit", "empty", "error"
	)

	CatalogLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlist_catalog_lookup_duration_seconds",
			Help:    "Duration of a single catalog provider lookup",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"provider"},
	)

	CoverCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlist_cover_cache_hits_total",
			Help: "Cover cache hits by layer",
		},
		[]string{"layer"}, // "memory", "redis"
	)

	CoverPlaceholders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlist_cover_placeholders_total",
			Help: "Titles that resolved to the placeholder image",
		},
		[]string{"category"},
	)

	// Generation
	Generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlist_generations_total",
			Help: "Text generation attempts by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: "batch", "replacement"; outcome: "ok", "format_error", "transport_error"
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlist_generation_duration_seconds",
			Help:    "Duration of text generation including parsing",
			Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30, 45},
		},
		[]string{"kind"},
	)

	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlist_model_calls_total",
			Help: "Calls to each text generation provider by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// Sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shortlist_active_sessions",
			Help: "Sessions currently held in memory",
		},
	)

	SessionActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlist_session_actions_total",
			Help: "Session actions by name and result",
		},
		[]string{"action", "result"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shortlist_websocket_connections",
			Help: "Open session event sockets",
		},
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlist_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordCatalogLookup records one provider call.
func RecordCatalogLookup(provider, outcome string, duration time.Duration) {
	CatalogLookups.WithLabelValues(provider, outcome).Inc()
	CatalogLookupDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordGeneration records one generation round trip.
func RecordGeneration(kind, outcome string, duration time.Duration) {
	Generations.WithLabelValues(kind, outcome).Inc()
	GenerationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordModelCall records one provider call made by the model manager.
func RecordModelCall(provider, outcome string) {
	ModelCalls.WithLabelValues(provider, outcome).Inc()
}

// RecordHTTPRequest records one API request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
