package ml

import "sync"

// MockMetrics is a test double for MetricsInterface.
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	predictionErrors int
	fallbackUse      int
	schemaMismatches int
	latencySum       float64
	scores           []float64
	modelAge         float64
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) PredictionErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionErrors++
}

func (m *MockMetrics) FallbackUseInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackUse++
}

func (m *MockMetrics) SchemaMismatchesInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaMismatches++
}

func (m *MockMetrics) InferenceLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) ScoreObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, v)
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) snapshot() (predictions, errors, fallback, mismatches int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.predictionErrors, m.fallbackUse, m.schemaMismatches
}
