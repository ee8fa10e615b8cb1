package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest pipeline and the stitching engine.
type Metrics struct {
	// Ingest pipeline metrics.
	PointsIngested  prometheus.Counter
	PointsRejected  prometheus.Counter
	PointsDuplicate prometheus.Counter
	IngestRunning   prometheus.Gauge
	BatchSize       prometheus.Histogram
	BatchDuration   prometheus.Histogram

	// Stitching engine metrics.
	ComputeRequests   prometheus.Counter
	ComputeDuration   prometheus.Histogram
	StrikesComputed   prometheus.Histogram
	FilteredPoints    prometheus.Histogram
	PartitionDuration prometheus.Histogram
	PartitionsFailed  prometheus.Counter

	// Result cache metrics.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PointsIngested,
		m.PointsRejected,
		m.PointsDuplicate,
		m.IngestRunning,
		m.BatchSize,
		m.BatchDuration,
		m.ComputeRequests,
		m.ComputeDuration,
		m.StrikesComputed,
		m.FilteredPoints,
		m.PartitionDuration,
		m.PartitionsFailed,
		m.CacheHits,
		m.CacheMisses,
		m.CacheErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PointsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lightning",
			Name:      "points_ingested_total",
			Help:      "Total points accepted into the point store.",
		}),
		PointsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lightning",
			Name:      "points_rejected_total",
			Help:      "Total malformed records rejected at ingest.",
		}),
		PointsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lightning",
			Name:      "points_duplicate_total",
			Help:      "Total records skipped as content-hash duplicates.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lightning",
			Name:      "ingest_running",
			Help:      "1 when the ingest pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lightning",
			Name:      "ingest_batch_size",
			Help:      "Number of records per batch extracted from Kafka.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lightning",
			Name:      "ingest_batch_duration_seconds",
			Help:      "Duration of a complete extract-parse-insert cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ComputeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lightning",
			Name:      "compute_requests_total",
			Help:      "Total strike computation requests, cached or not.",
		}),
		ComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lightning",
			Name:      "compute_duration_seconds",
			Help:      "Duration of uncached strike computations.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		StrikesComputed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lightning",
			Name:      "strikes_computed",
			Help:      "Final strike count per computation.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		}),
		FilteredPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lightning",
			Name:      "filtered_points",
			Help:      "Points entering the stitcher after filtering.",
			Buckets:   prometheus.ExponentialBuckets(1000, 4, 9),
		}),
		PartitionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lightning",
			Name:      "partition_duration_seconds",
			Help:      "Per-partition index+stitch duration.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		PartitionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lightning",
			Name:      "partitions_failed_total",
			Help:      "Worker partitions that failed and aborted a computation.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lightning",
			Name:      "result_cache_hits_total",
			Help:      "Computations served from the result cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lightning",
			Name:      "result_cache_misses_total",
			Help:      "Computations that had to run because of a cache miss.",
		}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lightning",
			Name:      "result_cache_errors_total",
			Help:      "Cache entries that failed to deserialize and were recomputed.",
		}),
	}
}
