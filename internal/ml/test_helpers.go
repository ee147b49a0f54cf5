package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu             sync.Mutex
	predictions    int
	failures       map[string]int
	latencies      int
	modelAge       float64
	artifactLoaded bool
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) FailuresInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[kind]++
}

func (m *MockMetrics) LatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) ArtifactLoadedSet(loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifactLoaded = loaded
}

// Predictions returns the number of successful predictions seen.
func (m *MockMetrics) Predictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions
}

// Failures returns the failure count for kind.
func (m *MockMetrics) Failures(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[kind]
}

// Latencies returns how many latency samples were observed.
func (m *MockMetrics) Latencies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latencies
}

// ArtifactLoaded returns the last reported load state.
func (m *MockMetrics) ArtifactLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifactLoaded
}
