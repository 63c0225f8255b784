package features

import "loanrisk-api/internal/common"

// CreditBin is the ordinal credit score category.
type CreditBin string

const (
	BinPoor      CreditBin = "Poor"
	BinFair      CreditBin = "Fair"
	BinGood      CreditBin = "Good"
	BinExcellent CreditBin = "Excellent"
)

// EnrichedFeatures is the application plus every derived field. It lives for
// the duration of one request and is never persisted as-is.
type EnrichedFeatures struct {
	LoanApplication

	IncomeToLoanRatio    float64 `json:"income_to_loan_ratio"`
	MonthlyPayment       float64 `json:"monthly_payment"`
	PaymentToIncomeRatio float64 `json:"payment_to_income_ratio"`

	EmploymentRisk        bool `json:"employment_risk"`
	HighInterest          bool `json:"high_interest"`
	YoungBorrower         bool `json:"young_borrower"`
	ExperiencedWorker     bool `json:"experienced_worker"`
	HighCreditScore       bool `json:"high_credit_score"`
	MultipleDelinquencies bool `json:"multiple_delinquencies"`
	ManyOpenAccounts      bool `json:"many_open_accounts"`

	CreditScoreBinned CreditBin `json:"credit_score_binned"`
	RiskScore         int       `json:"risk_score"`
}

// Derive validates the application and computes every derived field. Each
// field depends only on raw inputs, so derivation is deterministic.
func Derive(app LoanApplication) (EnrichedFeatures, error) {
	if err := app.Validate(); err != nil {
		return EnrichedFeatures{}, err
	}

	f := EnrichedFeatures{LoanApplication: app}

	f.IncomeToLoanRatio = app.AnnualIncome / app.LoanAmount
	f.MonthlyPayment = app.LoanAmount / float64(app.TermMonths)
	f.PaymentToIncomeRatio = f.MonthlyPayment * 12 / app.AnnualIncome

	f.EmploymentRisk = app.EmploymentLength < common.EmploymentRiskMaxYears
	f.HighInterest = app.InterestRate > common.HighInterestCutoff
	f.YoungBorrower = app.Age < common.YoungBorrowerMaxAge
	f.ExperiencedWorker = app.EmploymentLength > common.ExperiencedWorkerMinYears
	f.HighCreditScore = app.CreditScore > common.HighCreditScoreCutoff
	f.MultipleDelinquencies = app.Delinquency2Yrs >= common.MultipleDelinquenciesMin
	f.ManyOpenAccounts = app.NumOpenAcc > common.ManyOpenAccountsCutoff

	f.CreditScoreBinned = BinCreditScore(app.CreditScore)

	// Risk score counts only the five flags the model card names as risk
	// factors; experienced_worker and high_credit_score are diagnostics.
	for _, flag := range []bool{
		f.EmploymentRisk,
		f.HighInterest,
		f.YoungBorrower,
		f.MultipleDelinquencies,
		f.ManyOpenAccounts,
	} {
		if flag {
			f.RiskScore++
		}
	}

	return f, nil
}

// BinCreditScore maps a score in [0,850] to its ordinal category. Bins are
// right-closed, so 580 is still Poor and 740 is still Good.
func BinCreditScore(score float64) CreditBin {
	switch {
	case score <= common.CreditScorePoorMax:
		return BinPoor
	case score <= common.CreditScoreFairMax:
		return BinFair
	case score <= common.CreditScoreGoodMax:
		return BinGood
	default:
		return BinExcellent
	}
}
