// Package features derives the enriched feature set for a loan application.
// Derivation is a pure function of the raw application: the same input always
// produces the same ratios, flags, and risk score. The package also owns the
// fixed column schema the classifier was trained on.
package features

import (
	"encoding/json"
	"errors"
	"fmt"

	"loanrisk-api/internal/common"
)

// HomeOwnership enumeration accepted on the wire.
const (
	OwnershipOwn      = "OWN"
	OwnershipRent     = "RENT"
	OwnershipMortgage = "MORTGAGE"
)

// LoanApplication is the raw request record.
type LoanApplication struct {
	Age              int     `json:"age"`
	AnnualIncome     float64 `json:"annual_income"`
	EmploymentLength int     `json:"employment_length"`
	HomeOwnership    string  `json:"home_ownership"`
	Purpose          string  `json:"purpose"`
	LoanAmount       float64 `json:"loan_amount"`
	TermMonths       int     `json:"term_months"`
	InterestRate     float64 `json:"interest_rate"`
	DTI              float64 `json:"dti"`
	CreditScore      float64 `json:"credit_score"`
	Delinquency2Yrs  int     `json:"delinquency_2yrs"`
	NumOpenAcc       int     `json:"num_open_acc"`
}

// ValidationError reports a single malformed or missing input field with
// enough detail for the caller to correct and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// requiredFields lists every wire field an application must carry. Decoding
// into a value struct cannot tell an absent field from its zero value, so
// presence is checked against the raw document before unmarshalling.
var requiredFields = []string{
	"age",
	"annual_income",
	"employment_length",
	"home_ownership",
	"purpose",
	"loan_amount",
	"term_months",
	"interest_rate",
	"dti",
	"credit_score",
	"delinquency_2yrs",
	"num_open_acc",
}

// UnmarshalApplication decodes one application document, rejecting absent
// required fields and wrong-typed values as field-level validation errors.
func UnmarshalApplication(data []byte) (LoanApplication, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return LoanApplication{}, fmt.Errorf("application must be a JSON object: %w", err)
	}

	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return LoanApplication{}, &ValidationError{Field: field, Reason: "is required"}
		}
	}

	var app LoanApplication
	if err := json.Unmarshal(data, &app); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return LoanApplication{}, &ValidationError{Field: typeErr.Field, Reason: "has the wrong type"}
		}
		return LoanApplication{}, err
	}
	return app, nil
}

// Validate checks the application shape before derivation. Divisor fields
// must be strictly positive: ratio features are rejected at validation rather
// than computed against a sentinel.
func (a *LoanApplication) Validate() error {
	if a.Age < 0 {
		return &ValidationError{Field: "age", Reason: "must be non-negative"}
	}
	if a.AnnualIncome <= 0 {
		return &ValidationError{Field: "annual_income", Reason: "must be greater than zero"}
	}
	if a.EmploymentLength < 0 {
		return &ValidationError{Field: "employment_length", Reason: "must be non-negative"}
	}
	switch a.HomeOwnership {
	case OwnershipOwn, OwnershipRent, OwnershipMortgage:
	default:
		return &ValidationError{Field: "home_ownership", Reason: "must be one of OWN, RENT, MORTGAGE"}
	}
	if a.Purpose == "" {
		return &ValidationError{Field: "purpose", Reason: "must not be empty"}
	}
	if a.LoanAmount <= 0 {
		return &ValidationError{Field: "loan_amount", Reason: "must be greater than zero"}
	}
	if a.TermMonths <= 0 {
		return &ValidationError{Field: "term_months", Reason: "must be greater than zero"}
	}
	if a.InterestRate < 0 {
		return &ValidationError{Field: "interest_rate", Reason: "must be non-negative"}
	}
	if a.DTI < 0 {
		return &ValidationError{Field: "dti", Reason: "must be non-negative"}
	}
	if a.CreditScore < common.CreditScoreMin || a.CreditScore > common.CreditScoreMax {
		return &ValidationError{Field: "credit_score", Reason: "must be between 0 and 850"}
	}
	if a.Delinquency2Yrs < 0 {
		return &ValidationError{Field: "delinquency_2yrs", Reason: "must be non-negative"}
	}
	if a.NumOpenAcc < 0 {
		return &ValidationError{Field: "num_open_acc", Reason: "must be non-negative"}
	}
	return nil
}
