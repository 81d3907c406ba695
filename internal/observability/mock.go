package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry is a MetricsRegistry that records call counts, for
// tests that want to assert on what was incremented without standing up
// real Prometheus collectors.
type MockMetricsRegistry struct {
	mu sync.Mutex

	Processed      map[string]int
	Assigned       map[string]int
	FlaggedReview  map[string]int
	Errors         map[string]int
	NoCoverage     int
	MultiBlock     map[string]int
	DurationCalls  int
}

// NewMockMetricsRegistry returns an initialized MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		Processed:     make(map[string]int),
		Assigned:      make(map[string]int),
		FlaggedReview: make(map[string]int),
		Errors:        make(map[string]int),
		MultiBlock:    make(map[string]int),
	}
}

func (m *MockMetricsRegistry) IncrementSpotsProcessed(category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Processed[category]++
}

func (m *MockMetricsRegistry) IncrementSpotsAssigned(businessRule string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Assigned[businessRule]++
}

func (m *MockMetricsRegistry) IncrementSpotsFlaggedForReview(category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlaggedReview[category]++
}

func (m *MockMetricsRegistry) IncrementSpotsErrors(category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[category]++
}

func (m *MockMetricsRegistry) IncrementSpotsNoCoverage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NoCoverage++
}

func (m *MockMetricsRegistry) IncrementSpotsMultiBlock(businessRule string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MultiBlock[businessRule]++
}

func (m *MockMetricsRegistry) RecordBlockAssignmentDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DurationCalls++
}
