// Package decision maps a default probability onto the risk tiers and the
// approve/reject recommendation returned to the caller.
package decision

import (
	"fmt"
	"strings"

	"loanrisk-api/internal/common"
	"loanrisk-api/internal/features"
)

// RiskLevel is the ordinal risk tier derived from the default probability.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "Very Low"
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskVeryHigh RiskLevel = "Very High"
)

const (
	DecisionApprove = "Approve"
	DecisionReject  = "Reject"
)

// Prediction is the probability block of the result.
type Prediction struct {
	DefaultProbability        float64 `json:"default_probability"`
	DefaultProbabilityPercent string  `json:"default_probability_percent"`
	BinaryPrediction          int     `json:"binary_prediction"`
	PredictionLabel           string  `json:"prediction_label"`
}

// RiskAssessment is the tier block of the result.
type RiskAssessment struct {
	RiskLevel RiskLevel `json:"risk_level"`
	RiskColor string    `json:"risk_color"`
}

// Recommendation is the decision block of the result.
type Recommendation struct {
	Decision  string `json:"decision"`
	Reasoning string `json:"reasoning"`
}

// FeatureAnalysis echoes the derived diagnostics back to the caller.
type FeatureAnalysis struct {
	IncomeToLoanRatio    float64            `json:"income_to_loan_ratio"`
	MonthlyPayment       float64            `json:"monthly_payment"`
	PaymentToIncomeRatio float64            `json:"payment_to_income_ratio"`
	RiskScore            int                `json:"risk_score"`
	CreditScoreCategory  features.CreditBin `json:"credit_score_category"`
	RiskFactors          map[string]bool    `json:"risk_factors"`
}

// PredictionResult is the full assembled outcome for one application.
type PredictionResult struct {
	Prediction      Prediction      `json:"prediction"`
	RiskAssessment  RiskAssessment  `json:"risk_assessment"`
	Recommendation  Recommendation  `json:"recommendation"`
	FeatureAnalysis FeatureAnalysis `json:"feature_analysis"`
}

// Classify places a probability into exactly one risk band. Bands are
// half-open; a probability sitting on a bound belongs to the band above it.
func Classify(probability float64) (RiskLevel, string) {
	switch {
	case probability < common.RiskBandLow:
		return RiskVeryLow, "green"
	case probability < common.RiskBandMedium:
		return RiskLow, "lightgreen"
	case probability < common.RiskBandHigh:
		return RiskMedium, "yellow"
	case probability < common.RiskBandVeryHigh:
		return RiskHigh, "orange"
	default:
		return RiskVeryHigh, "red"
	}
}

// Assess converts a probability and the derived features into the final
// result. Pure: identical inputs always produce the identical result.
func Assess(probability float64, f features.EnrichedFeatures, threshold float64) PredictionResult {
	level, color := Classify(probability)

	binary := 0
	if probability >= threshold {
		binary = 1
	}

	label := "No Default"
	decisionStr := DecisionApprove
	if binary == 1 {
		label = "Default"
		decisionStr = DecisionReject
	}

	return PredictionResult{
		Prediction: Prediction{
			DefaultProbability:        probability,
			DefaultProbabilityPercent: fmt.Sprintf("%.2f%%", probability*100),
			BinaryPrediction:          binary,
			PredictionLabel:           label,
		},
		RiskAssessment: RiskAssessment{
			RiskLevel: level,
			RiskColor: color,
		},
		Recommendation: Recommendation{
			Decision:  decisionStr,
			Reasoning: fmt.Sprintf("Based on %.2f%% default probability and %s risk level", probability*100, strings.ToLower(string(level))),
		},
		FeatureAnalysis: FeatureAnalysis{
			IncomeToLoanRatio:    f.IncomeToLoanRatio,
			MonthlyPayment:       f.MonthlyPayment,
			PaymentToIncomeRatio: f.PaymentToIncomeRatio,
			RiskScore:            f.RiskScore,
			CreditScoreCategory:  f.CreditScoreBinned,
			RiskFactors: map[string]bool{
				"employment_risk":        f.EmploymentRisk,
				"high_interest":          f.HighInterest,
				"young_borrower":         f.YoungBorrower,
				"multiple_delinquencies": f.MultipleDelinquencies,
				"many_open_accounts":     f.ManyOpenAccounts,
			},
		},
	}
}
