// Package metrics provides Prometheus metrics collection for the loan risk
// service. It defines counters, gauges, and histograms covering prediction
// traffic, model health, and request handling, exposed on the metrics port.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal  prometheus.Counter   // Total number of predictions served
	PredictionErrors  prometheus.Counter   // Total number of failed predictions
	PredictionScores  prometheus.Histogram // Distribution of default probabilities
	InferenceLatency  prometheus.Histogram // Model inference latency in seconds
	FallbackUse       prometheus.Counter   // Predictions served by the heuristic fallback
	SchemaMismatches  prometheus.Counter   // Feature vectors rejected for schema mismatch
	ModelAge          prometheus.Gauge     // Age of the loaded model artifact in seconds

	// Request metrics
	RequestsTotal     prometheus.Counter   // Total HTTP prediction requests
	BatchRequests     prometheus.Counter   // Total batch prediction requests
	ValidationErrors  prometheus.Counter   // Requests rejected for malformed input
	RateLimited       prometheus.Counter   // Requests rejected by the rate limiter
	RequestDuration   prometheus.Histogram // End-to-end request handling duration
	HighRiskDecisions prometheus.Counter   // Predictions landing in High or Very High bands
	Rejections        prometheus.Counter   // Applications recommended for rejection
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows isolated metric collection in tests without touching the global
// Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_errors_total",
			Help: "Total number of failed predictions",
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_scores",
			Help:    "Distribution of predicted default probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		InferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Model inference latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		FallbackUse: factory.NewCounter(prometheus.CounterOpts{
			Name: "fallback_use_total",
			Help: "Total number of predictions served by the heuristic fallback",
		}),
		SchemaMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "schema_mismatches_total",
			Help: "Total number of feature vectors rejected for schema mismatch",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total HTTP prediction requests",
		}),
		BatchRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "batch_requests_total",
			Help: "Total batch prediction requests",
		}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_errors_total",
			Help: "Total requests rejected for malformed input",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "End-to-end request handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		HighRiskDecisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "high_risk_decisions_total",
			Help: "Predictions landing in the High or Very High risk bands",
		}),
		Rejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "rejections_total",
			Help: "Applications recommended for rejection",
		}),
	}
}
