package ml

import (
	"math"

	"loanrisk-api/internal/features"
)

// fallbackScore estimates a default probability from the derived features
// when no model artifact is available. It is a fixed-weight logistic scorer
// over the strongest signals in the enriched vector; deterministic, so the
// service keeps its identical-input identical-output guarantee even in
// degraded mode.
func fallbackScore(f features.EnrichedFeatures) float64 {
	// Weights are hand-set from the published feature-importance ordering of
	// the trained model; they are a stopgap, not a second model.
	score := -2.0

	score += 0.55 * float64(f.RiskScore)
	score += 0.03 * (f.DTI - 20.0)
	score += 1.2 * (f.PaymentToIncomeRatio - 0.15)

	switch f.CreditScoreBinned {
	case features.BinPoor:
		score += 0.9
	case features.BinFair:
		score += 0.3
	case features.BinExcellent:
		score -= 0.6
	}

	if f.IncomeToLoanRatio >= 3.0 {
		score -= 0.5
	}
	if f.ExperiencedWorker {
		score -= 0.2
	}

	return sigmoid(score)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
