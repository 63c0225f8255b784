// Package api exposes the prediction service over HTTP: health and model
// metadata probes plus single and batch prediction. The handler owns no
// state beyond the injected predictor handle; every request is processed
// independently.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"loanrisk-api/internal/cfg"
	"loanrisk-api/internal/common"
	"loanrisk-api/internal/ml"
	"loanrisk-api/internal/storage"
)

// MetricsInterface defines the metrics methods the handlers need.
type MetricsInterface interface {
	RequestsInc()
	BatchRequestsInc()
	ValidationErrorsInc()
	RateLimitedInc()
	HighRiskDecisionsInc()
	RejectionsInc()
	RequestDurationObserve(float64)
}

// Server is the HTTP front of the prediction pipeline.
type Server struct {
	settings  cfg.Settings
	predictor ml.PredictorInterface
	metrics   MetricsInterface
	store     *storage.Store // nil when auditing is disabled
	limiter   *RateLimiter   // nil when rate limiting is disabled
	server    *http.Server
	startTime time.Time
}

// NewServer wires the prediction pipeline behind the HTTP routes. The
// predictor is injected rather than looked up globally so tests can substitute
// their own.
func NewServer(settings cfg.Settings, predictor ml.PredictorInterface, metrics MetricsInterface, store *storage.Store) *Server {
	s := &Server{
		settings:  settings,
		predictor: predictor,
		metrics:   metrics,
		store:     store,
		startTime: time.Now(),
	}

	if settings.RateLimit > 0 {
		s.limiter = NewRateLimiter(settings.RateLimit, time.Minute)
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model-info", s.handleModelInfo).Methods(http.MethodGet)
	r.Handle("/predict", s.rateLimitMiddleware(http.HandlerFunc(s.handlePredict))).Methods(http.MethodPost)
	r.Handle("/batch-predict", s.rateLimitMiddleware(http.HandlerFunc(s.handleBatchPredict))).Methods(http.MethodPost)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Str("service", common.ServiceName).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeFieldError(w http.ResponseWriter, status int, field, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Field: field})
}
