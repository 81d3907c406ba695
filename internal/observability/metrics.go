package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total spots processed, labelled by the category they fell into
	SpotsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spots_processed_total",
			Help: "Total spots run through the core",
		},
		[]string{"category"},
	)

	// spots that received a block assignment, labelled by the business rule
	// that produced it
	SpotsAssigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spots_assigned_total",
			Help: "Total spots that received a block assignment",
		},
		[]string{"business_rule"},
	)

	// spots flagged for human review, labelled by category
	SpotsFlaggedForReview = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spots_flagged_for_review_total",
			Help: "Total spots whose block assignment is flagged requires_attention",
		},
		[]string{"category"},
	)

	// spots that errored during processing
	SpotsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spots_errors_total",
			Help: "Total spots that failed to process",
		},
		[]string{"category"},
	)

	// spots with no grid coverage for their market/time
	SpotsNoCoverage = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spots_no_coverage_total",
			Help: "Total spots with no matching programming schedule or block",
		},
	)

	// spots whose block assignment spans more than one block
	SpotsMultiBlock = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spots_multi_block_total",
			Help: "Total spots assigned to more than one block",
		},
		[]string{"business_rule"},
	)

	// latency of a single spot's block-assignment cascade
	BlockAssignmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "block_assignment_duration_seconds",
			Help:    "Duration of a single spot's block-assignment cascade",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		SpotsProcessed,
		SpotsAssigned,
		SpotsFlaggedForReview,
		SpotsErrors,
		SpotsNoCoverage,
		SpotsMultiBlock,
		BlockAssignmentDuration,
	)
}
