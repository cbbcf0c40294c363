package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picfinder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picfinder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picfinder_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picfinder_db_queries_total",
			Help: "Total number of catalog store queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picfinder_db_query_duration_seconds",
			Help:    "Catalog store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picfinder_db_transaction_duration_seconds",
			Help:    "Batch transaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picfinder_indexer_runs_total",
			Help: "Total number of indexing runs started",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picfinder_indexer_running",
			Help: "Whether an indexing run is currently in progress (1 or 0)",
		},
	)

	IndexerItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picfinder_indexer_items_total",
			Help: "Items handled by indexing runs, by outcome",
		},
		[]string{"outcome"}, // "processed", "skipped", "deleted", "errored"
	)

	IndexerStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picfinder_indexer_stage_duration_seconds",
			Help:    "Per-batch inference stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1200},
		},
		[]string{"stage"}, // "classification", "object_detection", "ocr"
	)

	IndexerRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "picfinder_indexer_run_duration_seconds",
			Help:    "Total indexing run duration in seconds",
			Buckets: []float64{1, 10, 60, 300, 1800, 7200, 21600},
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picfinder_indexer_errors_total",
			Help: "Total number of fatal indexing run errors",
		},
	)
)

// Filesystem metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picfinder_fs_stale_errors_total",
			Help: "NFS stale file handle errors encountered",
		},
		[]string{"operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picfinder_fs_retry_attempts_total",
			Help: "Filesystem operation retries attempted",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picfinder_fs_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picfinder_fs_retry_failures_total",
			Help: "Filesystem operations that exhausted their retries",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picfinder_memory_usage_ratio",
			Help: "Heap usage as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picfinder_memory_paused",
			Help: "Whether batch processing is paused on memory pressure (1 or 0)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picfinder_memory_gc_pauses_total",
			Help: "Forced garbage collections triggered by memory pressure",
		},
	)
)

// Search metrics
var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picfinder_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "picfinder_search_duration_seconds",
			Help:    "Search query duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)
