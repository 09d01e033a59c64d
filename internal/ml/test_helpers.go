package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	failures    map[string]int
	latencySum  float64
	latencyObs  int
	prices      []float64
	batchSizes  []int
	artifactAge float64
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) PredictionFailuresInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[kind]++
}

func (m *MockMetrics) PredictionLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyObs++
}

func (m *MockMetrics) PredictedPriceObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append(m.prices, v)
}

func (m *MockMetrics) BatchSizeObserve(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchSizes = append(m.batchSizes, n)
}

func (m *MockMetrics) ArtifactAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifactAge = v
}

// Predictions returns the number of successful predictions recorded.
func (m *MockMetrics) Predictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions
}

// Failures returns the number of failures recorded for kind.
func (m *MockMetrics) Failures(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[kind]
}

// LatencyObservations returns how many latency samples were recorded.
func (m *MockMetrics) LatencyObservations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latencyObs
}

// BatchSizes returns the recorded batch sizes.
func (m *MockMetrics) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchSizes...)
}
