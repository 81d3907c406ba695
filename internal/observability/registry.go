package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// This replaces direct access to global Prometheus metrics with dependency
// injection, so the orchestrator and engines never import
// prometheus/client_golang directly.
type MetricsRegistry interface {
	IncrementSpotsProcessed(category string)
	IncrementSpotsAssigned(businessRule string)
	IncrementSpotsFlaggedForReview(category string)
	IncrementSpotsErrors(category string)
	IncrementSpotsNoCoverage()
	IncrementSpotsMultiBlock(businessRule string)
	RecordBlockAssignmentDuration(duration time.Duration)
}

// PrometheusRegistry implements MetricsRegistry using the package's global
// Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry.
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementSpotsProcessed(category string) {
	SpotsProcessed.WithLabelValues(category).Inc()
}

func (r *PrometheusRegistry) IncrementSpotsAssigned(businessRule string) {
	SpotsAssigned.WithLabelValues(businessRule).Inc()
}

func (r *PrometheusRegistry) IncrementSpotsFlaggedForReview(category string) {
	SpotsFlaggedForReview.WithLabelValues(category).Inc()
}

func (r *PrometheusRegistry) IncrementSpotsErrors(category string) {
	SpotsErrors.WithLabelValues(category).Inc()
}

func (r *PrometheusRegistry) IncrementSpotsNoCoverage() {
	SpotsNoCoverage.Inc()
}

func (r *PrometheusRegistry) IncrementSpotsMultiBlock(businessRule string) {
	SpotsMultiBlock.WithLabelValues(businessRule).Inc()
}

func (r *PrometheusRegistry) RecordBlockAssignmentDuration(duration time.Duration) {
	BlockAssignmentDuration.Observe(duration.Seconds())
}

// NoOpRegistry implements MetricsRegistry with no-op methods, for CLI
// invocations that don't run a /metrics endpoint.
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry.
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementSpotsProcessed(category string)             {}
func (r *NoOpRegistry) IncrementSpotsAssigned(businessRule string)          {}
func (r *NoOpRegistry) IncrementSpotsFlaggedForReview(category string)      {}
func (r *NoOpRegistry) IncrementSpotsErrors(category string)                {}
func (r *NoOpRegistry) IncrementSpotsNoCoverage()                           {}
func (r *NoOpRegistry) IncrementSpotsMultiBlock(businessRule string)        {}
func (r *NoOpRegistry) RecordBlockAssignmentDuration(duration time.Duration) {}
