// Package ml wraps the pre-trained loan default classifier. The artifact is
// an ONNX export of a gradient-boosted model; inference runs through a small
// Python bridge so the Go service stays free of native ONNX bindings. When the
// artifact or Python runtime is missing the predictor can fall back to a
// deterministic heuristic scorer, or report ErrModelUnavailable when the
// fallback is disabled.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"loanrisk-api/internal/features"
)

// MetricsInterface defines the metrics methods needed by the predictor.
type MetricsInterface interface {
	PredictionsInc()
	PredictionErrorsInc()
	FallbackUseInc()
	SchemaMismatchesInc()
	InferenceLatencyObserve(float64)
	ScoreObserve(float64)
	ModelAgeSet(float64)
}

// PredictorInterface is the contract the request handler consumes. The model
// behind it is replaceable; only the probability contract matters.
type PredictorInterface interface {
	// PredictProbability returns the probability of default in [0,1].
	PredictProbability(f features.EnrichedFeatures) (float64, error)

	// PredictClass thresholds the probability into {0,1}.
	PredictClass(f features.EnrichedFeatures, threshold float64) (int, error)

	Available() bool
	Metadata() *ModelMetadata
	ModelPath() string
}

// Predictor runs inference against the ONNX artifact via the Python bridge.
// The artifact is loaded once at startup and treated as immutable; concurrent
// readers are safe.
type Predictor struct {
	available       bool
	fallbackEnabled bool
	modelPath       string
	pythonPath      string
	scriptPath      string
	timeout         time.Duration
	modelCreated    time.Time
	metadata        *ModelMetadata
	metrics         MetricsInterface

	mu            sync.RWMutex
	healthChecked time.Time
}

type inferenceRequest struct {
	Features []float32 `json:"features"`
}

type inferenceResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Prediction    int       `json:"prediction"`
	Error         string    `json:"error,omitempty"`
}

// Config controls predictor construction.
type Config struct {
	ModelPath      string
	Timeout        time.Duration
	EnableFallback bool
}

// New loads the model artifact and prepares the inference bridge. A missing
// artifact is not an error: the predictor comes up unavailable and either
// serves the fallback or surfaces ErrModelUnavailable per configuration, and
// /health reports model_loaded=false.
func New(cfg Config, metrics MetricsInterface) (*Predictor, error) {
	p := &Predictor{
		fallbackEnabled: cfg.EnableFallback,
		modelPath:       cfg.ModelPath,
		timeout:         cfg.Timeout,
		metrics:         metrics,
	}
	if p.timeout <= 0 {
		p.timeout = 5 * time.Second
	}

	info, err := os.Stat(cfg.ModelPath)
	if os.IsNotExist(err) {
		log.Warn().Str("model_path", cfg.ModelPath).Msg("model artifact not found, predictions degraded")
		p.metadata = defaultMetadata()
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat model artifact: %w", err)
	}
	p.modelCreated = info.ModTime()

	if md, err := loadModelMetadata(cfg.ModelPath); err != nil {
		log.Warn().Err(err).Msg("model metadata missing, using defaults")
		p.metadata = defaultMetadata()
	} else {
		p.metadata = md
	}

	pythonPath, err := findPython()
	if err != nil {
		log.Warn().Err(err).Msg("no Python runtime with onnxruntime, predictions degraded")
		return p, nil
	}
	p.pythonPath = pythonPath

	scriptPath := filepath.Join(filepath.Dir(cfg.ModelPath), "onnx_inference.py")
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		scriptPath = filepath.Join(filepath.Dir(cfg.ModelPath), "onnx_inference_embedded.py")
		if err := createInferenceScript(scriptPath); err != nil {
			log.Warn().Err(err).Msg("failed to create inference script, predictions degraded")
			return p, nil
		}
	}
	p.scriptPath = scriptPath
	p.available = true

	if err := p.healthCheck(); err != nil {
		log.Warn().Err(err).Msg("model health check failed, predictions degraded")
		p.available = false
	} else {
		log.Info().
			Str("model_path", cfg.ModelPath).
			Str("model_type", p.metadata.ModelType).
			Float64("roc_auc", p.metadata.ROCAUC).
			Msg("model loaded")
	}

	if p.metrics != nil && !p.modelCreated.IsZero() {
		p.metrics.ModelAgeSet(time.Since(p.modelCreated).Seconds())
	}

	return p, nil
}

func defaultMetadata() *ModelMetadata {
	return &ModelMetadata{
		Version:   "unknown",
		ModelType: "gradient_boost",
		Features:  features.SchemaColumns,
	}
}

// Available reports whether the artifact loaded and passed its health check.
func (p *Predictor) Available() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available
}

// Metadata returns the loaded model card.
func (p *Predictor) Metadata() *ModelMetadata { return p.metadata }

// ModelPath returns the configured artifact path.
func (p *Predictor) ModelPath() string { return p.modelPath }

// PredictProbability returns P(default) for one enriched application.
func (p *Predictor) PredictProbability(f features.EnrichedFeatures) (float64, error) {
	if p == nil {
		return 0, ErrModelUnavailable
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.InferenceLatencyObserve(time.Since(start).Seconds())
		}
	}()

	if !p.Available() {
		if !p.fallbackEnabled {
			if p.metrics != nil {
				p.metrics.PredictionErrorsInc()
			}
			return 0, ErrModelUnavailable
		}
		prob := fallbackScore(f)
		if p.metrics != nil {
			p.metrics.PredictionsInc()
			p.metrics.FallbackUseInc()
			p.metrics.ScoreObserve(prob)
		}
		return prob, nil
	}

	probs, err := p.predictInternal(f.Vector())
	if err != nil {
		if p.metrics != nil {
			p.metrics.PredictionErrorsInc()
		}
		return 0, err
	}

	// probabilities[1] is P(default), the positive class.
	prob := probs[1]
	if p.metrics != nil {
		p.metrics.PredictionsInc()
		p.metrics.ScoreObserve(prob)
	}
	return prob, nil
}

// PredictClass thresholds PredictProbability into {0,1}; the boundary value
// belongs to class 1.
func (p *Predictor) PredictClass(f features.EnrichedFeatures, threshold float64) (int, error) {
	prob, err := p.PredictProbability(f)
	if err != nil {
		return 0, err
	}
	if prob >= threshold {
		return 1, nil
	}
	return 0, nil
}

func (p *Predictor) predictInternal(vec []float32) ([]float64, error) {
	expected := len(features.SchemaColumns)
	if len(p.metadata.Features) > 0 {
		expected = len(p.metadata.Features)
	}
	if len(vec) != expected {
		if p.metrics != nil {
			p.metrics.SchemaMismatchesInc()
		}
		return nil, fmt.Errorf("%w: expected %d columns, got %d", ErrSchemaMismatch, expected, len(vec))
	}

	for i, v := range vec {
		if v != v {
			return nil, fmt.Errorf("feature %s is NaN", features.SchemaColumns[i])
		}
	}

	reqJSON, err := json.Marshal(inferenceRequest{Features: vec})
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pythonPath, p.scriptPath, p.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("script_path", p.scriptPath).
			Str("stderr", stderr.String()).
			Msg("inference bridge failed")

		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("inference timeout after %v", p.timeout)
		}
		if strings.Contains(stderr.String(), "onnxruntime not installed") {
			return nil, fmt.Errorf("onnxruntime dependency missing: %w", err)
		}
		return nil, fmt.Errorf("inference bridge: %w, stderr: %s", err, stderr.String())
	}

	var resp inferenceResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("parse inference response: %w, stdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inference bridge error: %s", resp.Error)
	}
	if len(resp.Probabilities) != 2 {
		return nil, fmt.Errorf("expected 2 class probabilities, got %d", len(resp.Probabilities))
	}
	for i, prob := range resp.Probabilities {
		if prob < 0 || prob > 1 || prob != prob {
			return nil, fmt.Errorf("invalid probability %d: %f", i, prob)
		}
	}

	return resp.Probabilities, nil
}

// healthCheck runs one inference against a neutral application, throttled to
// once per five minutes.
func (p *Predictor) healthCheck() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Sub(p.healthChecked) < 5*time.Minute {
		return nil
	}

	probe, err := features.Derive(features.LoanApplication{
		Age:              35,
		AnnualIncome:     60000,
		EmploymentLength: 5,
		HomeOwnership:    features.OwnershipMortgage,
		Purpose:          "credit_card",
		LoanAmount:       12000,
		TermMonths:       36,
		InterestRate:     11.0,
		DTI:              20.0,
		CreditScore:      700,
		Delinquency2Yrs:  0,
		NumOpenAcc:       6,
	})
	if err != nil {
		return err
	}

	if _, err := p.predictInternal(probe.Vector()); err != nil {
		return err
	}
	p.healthChecked = now
	return nil
}

func findPython() (string, error) {
	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates := []string{
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
		}
		for _, candidate := range candidates {
			if hasONNXRuntime(candidate) {
				return candidate, nil
			}
		}
	}

	for _, candidate := range []string{"python3", "python"} {
		path, err := exec.LookPath(candidate)
		if err != nil {
			continue
		}
		if hasONNXRuntime(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("no Python 3 with onnxruntime found")
}

func hasONNXRuntime(path string) bool {
	cmd := exec.Command(path, "-c", "import sys, onnxruntime; print('Python', sys.version)")
	output, err := cmd.Output()
	return err == nil && strings.Contains(string(output), "Python 3")
}
