// Package metrics defines the Prometheus instruments exported by the
// service and the HTTP server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CompactorMetrics tracks compaction activity.
type CompactorMetrics struct {
	// PendingBytes is the uncompacted WAL volume seen by the last scan.
	PendingBytes *prometheus.GaugeVec

	// MergedFiles counts merged files written.
	MergedFiles *prometheus.CounterVec

	// MergedBytes counts original bytes folded into merged files.
	MergedBytes *prometheus.CounterVec

	// DeletedSegments counts WAL segments removed after compaction,
	// labeled by why they were removed.
	DeletedSegments *prometheus.CounterVec

	// PendingDeletes is the number of deferred segment deletions
	// currently waiting on reader leases.
	PendingDeletes prometheus.Gauge

	// MergeFailures counts merge jobs that ended in an error.
	MergeFailures *prometheus.CounterVec

	// PassDuration observes full scan-to-delete pass latency.
	PassDuration prometheus.Histogram
}

// NewCompactorMetrics creates metrics registered with the default registry.
func NewCompactorMetrics() *CompactorMetrics {
	return NewCompactorMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewCompactorMetricsWithRegistry creates metrics registered with a custom
// registerer, for tests.
func NewCompactorMetricsWithRegistry(reg prometheus.Registerer) *CompactorMetrics {
	factory := promauto.With(reg)

	return &CompactorMetrics{
		PendingBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tessera_compactor_pending_bytes",
			Help: "Uncompacted WAL bytes observed by the last scan pass.",
		}, []string{"org", "stream_type"}),

		MergedFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_compactor_merged_files_total",
			Help: "Merged files written.",
		}, []string{"org", "stream_type"}),

		MergedBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_compactor_merged_bytes_total",
			Help: "Original bytes folded into merged files.",
		}, []string{"org", "stream_type"}),

		DeletedSegments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_compactor_deleted_segments_total",
			Help: "WAL segments deleted, by reason.",
		}, []string{"reason"}),

		PendingDeletes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tessera_compactor_pending_deletes",
			Help: "Segment deletions deferred by reader leases.",
		}),

		MergeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_compactor_merge_failures_total",
			Help: "Merge jobs that failed.",
		}, []string{"org", "stream_type"}),

		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tessera_compactor_pass_duration_seconds",
			Help:    "Duration of one full compaction pass.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// Deletion reason label values.
const (
	ReasonMerged     = "merged"
	ReasonRetention  = "retention"
	ReasonCorrupt    = "corrupt"
	ReasonStreamGone = "stream_deleting"
	ReasonPending    = "pending_retry"
)
