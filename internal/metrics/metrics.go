// Package metrics holds the Prometheus collectors for fanout queries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// QueriesTotal counts logical queries by outcome (ok, store_error, progress_error).
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flin_fanout_queries_total",
			Help: "Total number of logical fanout queries",
		},
		[]string{"collection", "status"},
	)
	// PhysicalQueriesTotal counts queries sent to the backing store.
	PhysicalQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flin_fanout_physical_queries_total",
			Help: "Total number of physical queries issued to the store",
		},
		[]string{"collection"},
	)
	// VariantsPerQuery is the number of physical queries one logical query needed.
	VariantsPerQuery = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flin_fanout_variants_per_query",
			Help:    "Physical query variants per logical query",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		},
	)
	// DeferredFiltersTotal counts constraints evaluated client-side.
	DeferredFiltersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flin_fanout_deferred_filters_total",
			Help: "Total number of constraints deferred to client-side evaluation",
		},
		[]string{"op"},
	)
	// RejectedDocumentsTotal counts fetched documents dropped by deferred filters.
	RejectedDocumentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flin_fanout_rejected_documents_total",
			Help: "Fetched documents excluded by deferred constraints",
		},
	)
	// EvalErrorsTotal counts deferred evaluations that failed.
	EvalErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flin_fanout_eval_errors_total",
			Help: "Deferred constraint evaluations that raised an error",
		},
	)
	// QueryDuration is the wall time of one logical query.
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flin_fanout_query_duration_seconds",
			Help:    "Logical fanout query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)
	// DocumentsReturned is the merged result size of a logical query.
	DocumentsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flin_fanout_documents_returned",
			Help:    "Documents returned per logical query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(PhysicalQueriesTotal)
	prometheus.MustRegister(VariantsPerQuery)
	prometheus.MustRegister(DeferredFiltersTotal)
	prometheus.MustRegister(RejectedDocumentsTotal)
	prometheus.MustRegister(EvalErrorsTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(DocumentsReturned)
}
