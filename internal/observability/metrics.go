package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_search_request_duration_seconds",
			Help:    "Search request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.5, 1, 2.5},
		},
		[]string{"sort_by", "source", "status"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_search_requests_total",
			Help: "Total number of search requests",
		},
		[]string{"sort_by", "status"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_search_pipeline_stage_duration_seconds",
			Help:    "Per-stage ranking pipeline duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"stage"},
	)

	PersonalizationBoostScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_search_boost_score",
			Help:    "Distribution of computed personalization boost scores",
			Buckets: []float64{0, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1},
		},
	)

	SupersededSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_search_superseded_total",
			Help: "Searches discarded because a newer search for the session started",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_hits_total",
			Help: "Total number of Redis cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_misses_total",
			Help: "Total number of Redis cache misses",
		},
	)

	ESQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "es_query_duration_seconds",
			Help:    "Elasticsearch query duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.5, 1},
		},
		[]string{"index", "status"},
	)

	CHQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ch_query_duration_seconds",
			Help:    "ClickHouse query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"query_type", "status"},
	)

	IndexingLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_indexing_lag_seconds",
			Help: "Current catalog indexing pipeline lag in seconds",
		},
	)

	IndexingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_indexing_events_total",
			Help: "Total number of catalog indexing events processed",
		},
		[]string{"operation", "status"},
	)

	InteractionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_events_total",
			Help: "Total number of user interaction events processed",
		},
		[]string{"type", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowSearchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_search_total",
			Help: "Total number of slow searches",
		},
		[]string{"severity", "sort_by"},
	)

	FallbackCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_fallback_total",
			Help: "Total number of search fallback invocations",
		},
		[]string{"level"},
	)
)
