package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector of the service.
const Namespace = "astrocat"

// Query kinds used as the "kind" label.
const (
	KindCone    = "cone"
	KindBox     = "box"
	KindNearest = "nearest"
)

// Domain collectors.
var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "query_duration_seconds",
			Help:      "Positional query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	QueryCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "query_candidates",
			Help:      "Candidates returned by the index prefilter before the exact separation test",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		},
		[]string{"kind"},
	)

	CrossMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crossmatch_targets_total",
			Help:      "Cross-matched targets by outcome",
		},
		[]string{"outcome"}, // "matched" / "no_match"
	)

	BulkImportRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bulk_import_rows_total",
			Help:      "Rows processed by bulk import",
		},
		[]string{"status"}, // "imported" / "failed"
	)

	WorkflowActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "workflow_actions_total",
			Help:      "Workflow registry mutations by action and processing type",
		},
		[]string{"action", "type"},
	)
)

var registerOnce sync.Once

// Register registers the domain collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			QueryDuration,
			QueryCandidates,
			CrossMatchesTotal,
			BulkImportRowsTotal,
			WorkflowActionsTotal,
		)
	})
}
