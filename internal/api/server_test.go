package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanrisk-api/internal/cfg"
	"loanrisk-api/internal/features"
	"loanrisk-api/internal/ml"
)

// stubPredictor returns a fixed probability, or a fixed error.
type stubPredictor struct {
	prob      float64
	err       error
	available bool
	metadata  *ml.ModelMetadata
}

func (p *stubPredictor) PredictProbability(features.EnrichedFeatures) (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.prob, nil
}

func (p *stubPredictor) PredictClass(f features.EnrichedFeatures, threshold float64) (int, error) {
	prob, err := p.PredictProbability(f)
	if err != nil {
		return 0, err
	}
	if prob >= threshold {
		return 1, nil
	}
	return 0, nil
}

func (p *stubPredictor) Available() bool             { return p.available }
func (p *stubPredictor) Metadata() *ml.ModelMetadata { return p.metadata }
func (p *stubPredictor) ModelPath() string           { return "models/loan_default.onnx" }

type stubMetrics struct {
	mu               sync.Mutex
	requests         int
	batches          int
	validationErrors int
	rateLimited      int
	highRisk         int
	rejections       int
}

func (m *stubMetrics) RequestsInc()                   { m.mu.Lock(); m.requests++; m.mu.Unlock() }
func (m *stubMetrics) BatchRequestsInc()              { m.mu.Lock(); m.batches++; m.mu.Unlock() }
func (m *stubMetrics) ValidationErrorsInc()           { m.mu.Lock(); m.validationErrors++; m.mu.Unlock() }
func (m *stubMetrics) RateLimitedInc()                { m.mu.Lock(); m.rateLimited++; m.mu.Unlock() }
func (m *stubMetrics) HighRiskDecisionsInc()          { m.mu.Lock(); m.highRisk++; m.mu.Unlock() }
func (m *stubMetrics) RejectionsInc()                 { m.mu.Lock(); m.rejections++; m.mu.Unlock() }
func (m *stubMetrics) RequestDurationObserve(float64) {}

func testSettings() cfg.Settings {
	return cfg.Settings{
		ModelPath:        "models/loan_default.onnx",
		Port:             9000,
		MetricsPort:      9100,
		ProbThreshold:    0.5,
		InferenceTimeout: 5 * time.Second,
		EnableFallback:   true,
		MaxBatchSize:     100,
	}
}

func testServer(t *testing.T, predictor ml.PredictorInterface) (*Server, *stubMetrics) {
	t.Helper()
	metrics := &stubMetrics{}
	s := NewServer(testSettings(), predictor, metrics, nil)
	t.Cleanup(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
	})
	return s, metrics
}

func validApplication() map[string]any {
	return map[string]any{
		"age":               35,
		"annual_income":     80000.0,
		"employment_length": 8,
		"home_ownership":    "MORTGAGE",
		"purpose":           "debt_consolidation",
		"loan_amount":       20000.0,
		"term_months":       60,
		"interest_rate":     9.5,
		"dti":               18.0,
		"credit_score":      760.0,
		"delinquency_2yrs":  0,
		"num_open_acc":      6,
	}
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:51234"
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	predictor := &stubPredictor{
		available: true,
		metadata: &ml.ModelMetadata{
			ModelType: "gradient_boost",
			ROCAUC:    0.93,
			Precision: 0.88,
		},
	}
	s, _ := testServer(t, predictor)

	rr := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, true, resp["model_loaded"])
	assert.Equal(t, "gradient_boost", resp["model_type"])
	assert.Equal(t, "models/loan_default.onnx", resp["model_path"])

	perf, ok := resp["model_performance"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.93, perf["roc_auc"], 1e-9)
}

func TestHandleHealth_ModelMissing(t *testing.T) {
	s, _ := testServer(t, &stubPredictor{available: false})

	rr := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, false, resp["model_loaded"])
}

func TestHandleModelInfo(t *testing.T) {
	predictor := &stubPredictor{
		available: true,
		metadata: &ml.ModelMetadata{
			Version:   "2.1.0",
			ModelType: "gradient_boost",
			Features:  features.SchemaColumns,
			ROCAUC:    0.93,
			AllResults: map[string]float64{
				"gradient_boost":      0.93,
				"random_forest":       0.91,
				"logistic_regression": 0.87,
			},
		},
	}
	s, _ := testServer(t, predictor)

	rr := doJSON(t, s, http.MethodGet, "/model-info", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp modelInfoResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "2.1.0", resp.ModelDetails.Version)
	assert.Len(t, resp.FeatureEngineering.SchemaColumns, len(features.SchemaColumns))
	assert.Len(t, resp.PerformanceComparison, 3)
	assert.Equal(t, 0.5, resp.ProbabilityThreshold)
}

func TestHandleModelInfo_Unavailable(t *testing.T) {
	s, _ := testServer(t, &stubPredictor{available: false})

	rr := doJSON(t, s, http.MethodGet, "/model-info", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandlePredict(t *testing.T) {
	s, metrics := testServer(t, &stubPredictor{
		prob:      0.08,
		available: true,
		metadata:  &ml.ModelMetadata{ModelType: "gradient_boost", Version: "2.1.0"},
	})

	rr := doJSON(t, s, http.MethodPost, "/predict", validApplication())
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp["request_id"])

	pred := resp["prediction"].(map[string]any)
	assert.InDelta(t, 0.08, pred["default_probability"], 1e-9)
	assert.Equal(t, "8.00%", pred["default_probability_percent"])
	assert.Equal(t, float64(0), pred["binary_prediction"])
	assert.Equal(t, "No Default", pred["prediction_label"])

	risk := resp["risk_assessment"].(map[string]any)
	assert.Equal(t, "Very Low", risk["risk_level"])
	assert.Equal(t, "green", risk["risk_color"])

	rec := resp["recommendation"].(map[string]any)
	assert.Equal(t, "Approve", rec["decision"])
	assert.Equal(t, "Based on 8.00% default probability and very low risk level", rec["reasoning"])

	fa := resp["feature_analysis"].(map[string]any)
	assert.InDelta(t, 4.0, fa["income_to_loan_ratio"], 1e-9)
	assert.Equal(t, float64(0), fa["risk_score"])
	assert.Equal(t, "Excellent", fa["credit_score_category"])

	mi := resp["model_info"].(map[string]any)
	assert.Equal(t, "gradient_boost", mi["model_type"])
	assert.Equal(t, false, mi["fallback"])

	assert.Equal(t, 1, metrics.requests)
	assert.Equal(t, 0, metrics.rejections)
}

func TestHandlePredict_RejectDecision(t *testing.T) {
	s, metrics := testServer(t, &stubPredictor{prob: 0.82, available: true})

	rr := doJSON(t, s, http.MethodPost, "/predict", validApplication())
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	pred := resp["prediction"].(map[string]any)
	assert.Equal(t, float64(1), pred["binary_prediction"])
	assert.Equal(t, "Default", pred["prediction_label"])

	risk := resp["risk_assessment"].(map[string]any)
	assert.Equal(t, "Very High", risk["risk_level"])
	assert.Equal(t, "red", risk["risk_color"])

	rec := resp["recommendation"].(map[string]any)
	assert.Equal(t, "Reject", rec["decision"])

	assert.Equal(t, 1, metrics.rejections)
	assert.Equal(t, 1, metrics.highRisk)
}

func TestHandlePredict_ValidationError(t *testing.T) {
	s, metrics := testServer(t, &stubPredictor{prob: 0.1, available: true})

	app := validApplication()
	app["loan_amount"] = 0.0

	rr := doJSON(t, s, http.MethodPost, "/predict", app)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "loan_amount", resp.Field)
	assert.Equal(t, 1, metrics.validationErrors)
}

func TestHandlePredict_MissingField(t *testing.T) {
	s, metrics := testServer(t, &stubPredictor{prob: 0.1, available: true})

	app := validApplication()
	delete(app, "credit_score")

	rr := doJSON(t, s, http.MethodPost, "/predict", app)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "credit_score", resp.Field)
	assert.Equal(t, 1, metrics.validationErrors)
}

func TestHandlePredict_MalformedBody(t *testing.T) {
	s, _ := testServer(t, &stubPredictor{prob: 0.1, available: true})

	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString("{not json"))
	req.RemoteAddr = "192.0.2.1:51234"
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlePredict_ModelUnavailable(t *testing.T) {
	s, _ := testServer(t, &stubPredictor{err: ml.ErrModelUnavailable})

	rr := doJSON(t, s, http.MethodPost, "/predict", validApplication())
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleBatchPredict_Isolation(t *testing.T) {
	s, metrics := testServer(t, &stubPredictor{prob: 0.3, available: true})

	good := validApplication()
	bad := validApplication()
	bad["loan_amount"] = 0.0

	rr := doJSON(t, s, http.MethodPost, "/batch-predict", map[string]any{
		"applications": []map[string]any{good, bad, good},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.Summary.TotalApplications)
	assert.Equal(t, 2, resp.Summary.SuccessfulPredictions)
	assert.Equal(t, 1, resp.Summary.Errors)
	assert.Equal(t, 0, resp.Summary.HighRiskCount)

	require.Len(t, resp.Results, 3)

	// One bad record must not fail its neighbors, and order is preserved.
	assert.Equal(t, 1, resp.Results[0].ApplicationID)
	assert.Equal(t, "success", resp.Results[0].Status)
	require.NotNil(t, resp.Results[0].Result)

	assert.Equal(t, 2, resp.Results[1].ApplicationID)
	assert.Equal(t, "error", resp.Results[1].Status)
	assert.Equal(t, "loan_amount", resp.Results[1].Field)
	assert.Nil(t, resp.Results[1].Result)

	assert.Equal(t, 3, resp.Results[2].ApplicationID)
	assert.Equal(t, "success", resp.Results[2].Status)

	assert.Equal(t, 1, metrics.batches)
	assert.Equal(t, 1, metrics.validationErrors)
}

func TestHandleBatchPredict_MissingField(t *testing.T) {
	s, _ := testServer(t, &stubPredictor{prob: 0.3, available: true})

	incomplete := validApplication()
	delete(incomplete, "age")

	rr := doJSON(t, s, http.MethodPost, "/batch-predict", map[string]any{
		"applications": []map[string]any{validApplication(), incomplete},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.Summary.SuccessfulPredictions)
	assert.Equal(t, 1, resp.Summary.Errors)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, "success", resp.Results[0].Status)
	assert.Equal(t, "error", resp.Results[1].Status)
	assert.Equal(t, "age", resp.Results[1].Field)
}

func TestHandleBatchPredict_HighRiskCount(t *testing.T) {
	s, _ := testServer(t, &stubPredictor{prob: 0.6, available: true})

	rr := doJSON(t, s, http.MethodPost, "/batch-predict", map[string]any{
		"applications": []map[string]any{validApplication(), validApplication()},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Summary.HighRiskCount)
}

func TestHandleBatchPredict_Empty(t *testing.T) {
	s, _ := testServer(t, &stubPredictor{prob: 0.1, available: true})

	rr := doJSON(t, s, http.MethodPost, "/batch-predict", map[string]any{
		"applications": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleBatchPredict_TooLarge(t *testing.T) {
	s, _ := testServer(t, &stubPredictor{prob: 0.1, available: true})

	apps := make([]map[string]any, s.settings.MaxBatchSize+1)
	for i := range apps {
		apps[i] = validApplication()
	}

	rr := doJSON(t, s, http.MethodPost, "/batch-predict", map[string]any{"applications": apps})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d should pass", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"), "bucket should be empty")

	// Other clients have their own bucket.
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimitMiddleware(t *testing.T) {
	settings := testSettings()
	settings.RateLimit = 2
	metrics := &stubMetrics{}
	s := NewServer(settings, &stubPredictor{prob: 0.1, available: true}, metrics, nil)
	defer s.limiter.Stop()

	for i := 0; i < 2; i++ {
		rr := doJSON(t, s, http.MethodPost, "/predict", validApplication())
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i)
	}

	rr := doJSON(t, s, http.MethodPost, "/predict", validApplication())
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 1, metrics.rateLimited)
}

func TestConfigurableThreshold(t *testing.T) {
	settings := testSettings()
	settings.RateLimit = 0
	settings.ProbThreshold = 0.3
	s := NewServer(settings, &stubPredictor{prob: 0.35, available: true}, &stubMetrics{}, nil)

	rr := doJSON(t, s, http.MethodPost, "/predict", validApplication())
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	pred := resp["prediction"].(map[string]any)
	assert.Equal(t, float64(1), pred["binary_prediction"],
		fmt.Sprintf("0.35 >= 0.30 must reject, got %v", pred))
}
