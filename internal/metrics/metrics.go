package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetcher Metrics
var (
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_pages_fetched_total",
		Help: "The total number of pages fetched from the archive",
	})

	RecordsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_records_fetched_total",
		Help: "The total number of block records received from the archive",
	})

	ResponseBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_response_bytes_total",
		Help: "The total size of archive response bodies",
	})

	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_fetch_retries_total",
		Help: "The number of archive requests retried after a transient failure",
	})

	LastFetchedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archive_last_fetched_block",
		Help: "The highest block number received from the archive",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "archive_fetch_duration_seconds",
		Help:    "Time taken to fetch one page from the archive",
		Buckets: prometheus.DefBuckets,
	})
)

// Cache Metrics
var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "page_cache_hits_total",
		Help: "The number of archive pages served from the cache",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "page_cache_misses_total",
		Help: "The number of archive pages not found in the cache",
	})
)

// Chunk Metrics
var ChunksEmitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chunks_emitted_total",
	Help: "The number of chunks handed to the writer",
})

// Writer Metrics
var (
	FilesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "writer_files_written_total",
		Help: "The number of columnar files persisted",
	})

	RowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "writer_rows_written_total",
		Help: "The number of rows persisted across all files",
	})

	WriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "writer_write_duration_seconds",
		Help:    "Time taken to materialize and persist one chunk",
		Buckets: prometheus.DefBuckets,
	})
)

// Publisher Metrics
var PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "publisher_errors_total",
	Help: "The number of failed publish attempts per sink",
}, []string{"sink"})

// Progress Metrics
var ProgressPercent = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "export_progress_percent",
	Help: "The normalized progress of the running export",
})
