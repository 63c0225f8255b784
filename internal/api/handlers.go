package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"loanrisk-api/internal/common"
	"loanrisk-api/internal/decision"
	"loanrisk-api/internal/features"
	"loanrisk-api/internal/ml"
	"loanrisk-api/internal/storage"
)

type healthResponse struct {
	Status           string             `json:"status"`
	Service          string             `json:"service"`
	ModelLoaded      bool               `json:"model_loaded"`
	ModelPath        string             `json:"model_path"`
	ModelType        string             `json:"model_type"`
	UptimeSeconds    float64            `json:"uptime_seconds"`
	ModelPerformance map[string]float64 `json:"model_performance,omitempty"`
}

type modelInfoResponse struct {
	ModelDetails          *ml.ModelMetadata  `json:"model_details"`
	FeatureEngineering    featureEngineering `json:"feature_engineering"`
	PerformanceComparison map[string]float64 `json:"performance_comparison,omitempty"`
	ProbabilityThreshold  float64            `json:"probability_threshold"`
}

type featureEngineering struct {
	InputFields     int      `json:"input_fields"`
	DerivedFeatures []string `json:"derived_features"`
	SchemaColumns   []string `json:"schema_columns"`
}

type modelInfoSummary struct {
	ModelType            string  `json:"model_type"`
	Version              string  `json:"version"`
	ProbabilityThreshold float64 `json:"probability_threshold"`
	Fallback             bool    `json:"fallback"`
}

type predictResponse struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	decision.PredictionResult
	ModelInfo modelInfoSummary `json:"model_info"`
}

type batchRequest struct {
	Applications []json.RawMessage `json:"applications"`
}

type batchItem struct {
	ApplicationID int                        `json:"application_id"`
	Status        string                     `json:"status"`
	Result        *decision.PredictionResult `json:"result,omitempty"`
	Error         string                     `json:"error,omitempty"`
	Field         string                     `json:"field,omitempty"`
}

type batchSummary struct {
	TotalApplications     int `json:"total_applications"`
	SuccessfulPredictions int `json:"successful_predictions"`
	Errors                int `json:"errors"`
	HighRiskCount         int `json:"high_risk_count"`
}

type batchResponse struct {
	RequestID string       `json:"request_id"`
	Timestamp time.Time    `json:"timestamp"`
	Summary   batchSummary `json:"summary"`
	Results   []batchItem  `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.requestsInc()

	resp := healthResponse{
		Status:        "healthy",
		Service:       common.ServiceName,
		ModelLoaded:   s.predictor.Available(),
		ModelPath:     s.predictor.ModelPath(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}

	if md := s.predictor.Metadata(); md != nil {
		resp.ModelType = md.ModelType
		if md.ROCAUC > 0 {
			resp.ModelPerformance = map[string]float64{
				"roc_auc":   md.ROCAUC,
				"precision": md.Precision,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	s.requestsInc()

	if !s.predictor.Available() {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}

	md := s.predictor.Metadata()
	writeJSON(w, http.StatusOK, modelInfoResponse{
		ModelDetails: md,
		FeatureEngineering: featureEngineering{
			InputFields: 12,
			DerivedFeatures: []string{
				"income_to_loan_ratio",
				"monthly_payment",
				"payment_to_income_ratio",
				"employment_risk",
				"high_interest",
				"young_borrower",
				"experienced_worker",
				"high_credit_score",
				"multiple_delinquencies",
				"many_open_accounts",
				"credit_score_binned",
				"risk_score",
			},
			SchemaColumns: features.SchemaColumns,
		},
		PerformanceComparison: md.AllResults,
		ProbabilityThreshold:  s.settings.ProbThreshold,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.requestsInc()
	defer s.durationObserve(start)

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	app, err := s.decodeApplication(raw)
	if err != nil {
		var ve *features.ValidationError
		if errors.As(err, &ve) {
			writeFieldError(w, http.StatusBadRequest, ve.Field, ve.Reason)
		} else {
			writeError(w, http.StatusBadRequest, "malformed request body")
		}
		return
	}

	result, err := s.process(app)
	if err != nil {
		s.writeProcessError(w, err)
		return
	}

	requestID := uuid.NewString()
	now := time.Now().UTC()
	s.audit(requestID, now, result, app)

	writeJSON(w, http.StatusOK, predictResponse{
		RequestID:        requestID,
		Timestamp:        now,
		PredictionResult: result,
		ModelInfo:        s.modelSummary(),
	})
}

func (s *Server) handleBatchPredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.requestsInc()
	if s.metrics != nil {
		s.metrics.BatchRequestsInc()
	}
	defer s.durationObserve(start)

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Applications) == 0 {
		writeFieldError(w, http.StatusBadRequest, "applications", "must contain at least one application")
		return
	}
	if len(req.Applications) > s.settings.MaxBatchSize {
		writeFieldError(w, http.StatusBadRequest, "applications",
			"batch exceeds maximum size")
		return
	}

	resp := batchResponse{
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Results:   make([]batchItem, 0, len(req.Applications)),
	}
	resp.Summary.TotalApplications = len(req.Applications)

	// Each application is scored in isolation: one bad record never fails
	// its neighbors, and results come back in input order.
	for i, raw := range req.Applications {
		item := batchItem{ApplicationID: i + 1}

		result, app, err := s.processRaw(raw)
		if err != nil {
			item.Status = "error"
			item.Error = err.Error()
			var ve *features.ValidationError
			if errors.As(err, &ve) {
				item.Field = ve.Field
			}
			resp.Summary.Errors++
		} else {
			item.Status = "success"
			res := result
			item.Result = &res
			resp.Summary.SuccessfulPredictions++
			if result.RiskAssessment.RiskLevel == decision.RiskHigh ||
				result.RiskAssessment.RiskLevel == decision.RiskVeryHigh {
				resp.Summary.HighRiskCount++
			}
			s.audit(uuid.NewString(), resp.Timestamp, result, app)
		}

		resp.Results = append(resp.Results, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeApplication decodes one raw record, counting field-level failures as
// validation errors.
func (s *Server) decodeApplication(raw json.RawMessage) (features.LoanApplication, error) {
	app, err := features.UnmarshalApplication(raw)
	if err != nil {
		var ve *features.ValidationError
		if errors.As(err, &ve) && s.metrics != nil {
			s.metrics.ValidationErrorsInc()
		}
		return app, err
	}
	return app, nil
}

// processRaw decodes and scores one batch record.
func (s *Server) processRaw(raw json.RawMessage) (decision.PredictionResult, features.LoanApplication, error) {
	app, err := s.decodeApplication(raw)
	if err != nil {
		return decision.PredictionResult{}, app, err
	}
	result, err := s.process(app)
	return result, app, err
}

// process runs one application through the full pipeline: validation,
// feature derivation, inference, and decision mapping.
func (s *Server) process(app features.LoanApplication) (decision.PredictionResult, error) {
	enriched, err := features.Derive(app)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ValidationErrorsInc()
		}
		return decision.PredictionResult{}, err
	}

	prob, err := s.predictor.PredictProbability(enriched)
	if err != nil {
		return decision.PredictionResult{}, err
	}

	result := decision.Assess(prob, enriched, s.settings.ProbThreshold)

	if s.metrics != nil {
		if result.RiskAssessment.RiskLevel == decision.RiskHigh ||
			result.RiskAssessment.RiskLevel == decision.RiskVeryHigh {
			s.metrics.HighRiskDecisionsInc()
		}
		if result.Recommendation.Decision == decision.DecisionReject {
			s.metrics.RejectionsInc()
		}
	}

	return result, nil
}

func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	var ve *features.ValidationError
	switch {
	case errors.As(err, &ve):
		writeFieldError(w, http.StatusBadRequest, ve.Field, ve.Reason)
	case errors.Is(err, ml.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "model not loaded and fallback disabled")
	default:
		log.Error().Err(err).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, "prediction failed")
	}
}

// audit persists a record when the store is configured. Failures are logged
// and never surfaced to the caller.
func (s *Server) audit(id string, ts time.Time, result decision.PredictionResult, app features.LoanApplication) {
	if s.store == nil {
		return
	}
	rec := storage.RecordFromResult(id, ts, result, app.LoanAmount, app.Purpose, !s.predictor.Available())
	if err := s.store.StorePrediction(rec); err != nil {
		log.Error().Err(err).Str("request_id", id).Msg("failed to audit prediction")
	}
}

func (s *Server) modelSummary() modelInfoSummary {
	summary := modelInfoSummary{
		ProbabilityThreshold: s.settings.ProbThreshold,
		Fallback:             !s.predictor.Available(),
	}
	if md := s.predictor.Metadata(); md != nil {
		summary.ModelType = md.ModelType
		summary.Version = md.Version
	}
	return summary
}

func (s *Server) requestsInc() {
	if s.metrics != nil {
		s.metrics.RequestsInc()
	}
}

func (s *Server) durationObserve(start time.Time) {
	if s.metrics != nil {
		s.metrics.RequestDurationObserve(time.Since(start).Seconds())
	}
}
