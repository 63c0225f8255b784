package features

// SchemaColumns is the fixed column order the classifier was trained on.
// Vector() must stay in lockstep with this list; the ml package compares its
// length against the model metadata before every inference.
var SchemaColumns = []string{
	"age",
	"annual_income",
	"employment_length",
	"home_ownership_enc",
	"purpose_enc",
	"loan_amount",
	"term_months",
	"interest_rate",
	"dti",
	"credit_score",
	"delinquency_2yrs",
	"num_open_acc",
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
	"credit_score_binned_enc",
	"risk_score",
}

// Ordinal codes for the categorical columns, matching the training encoder.
var ownershipCodes = map[string]float32{
	OwnershipOwn:      0,
	OwnershipMortgage: 1,
	OwnershipRent:     2,
}

var purposeCodes = map[string]float32{
	"debt_consolidation": 0,
	"credit_card":        1,
	"home_improvement":   2,
	"major_purchase":     3,
	"medical":            4,
	"small_business":     5,
	"car":                6,
	"vacation":           7,
	"moving":             8,
	"house":              9,
	"wedding":            10,
	"other":              11,
}

var binCodes = map[CreditBin]float32{
	BinPoor:      0,
	BinFair:      1,
	BinGood:      2,
	BinExcellent: 3,
}

// Vector flattens the enriched features into the ordered numeric schema the
// model expects. Unknown purpose strings collapse into the "other" code, the
// same bucket the training pipeline used for rare categories.
func (f EnrichedFeatures) Vector() []float32 {
	purpose, ok := purposeCodes[f.Purpose]
	if !ok {
		purpose = purposeCodes["other"]
	}

	return []float32{
		float32(f.Age),
		float32(f.AnnualIncome),
		float32(f.EmploymentLength),
		ownershipCodes[f.HomeOwnership],
		purpose,
		float32(f.LoanAmount),
		float32(f.TermMonths),
		float32(f.InterestRate),
		float32(f.DTI),
		float32(f.CreditScore),
		float32(f.Delinquency2Yrs),
		float32(f.NumOpenAcc),
		float32(f.IncomeToLoanRatio),
		float32(f.MonthlyPayment),
		float32(f.PaymentToIncomeRatio),
		boolToFloat(f.EmploymentRisk),
		boolToFloat(f.HighInterest),
		boolToFloat(f.YoungBorrower),
		boolToFloat(f.ExperiencedWorker),
		boolToFloat(f.HighCreditScore),
		boolToFloat(f.MultipleDelinquencies),
		boolToFloat(f.ManyOpenAccounts),
		binCodes[f.CreditScoreBinned],
		float32(f.RiskScore),
	}
}

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
