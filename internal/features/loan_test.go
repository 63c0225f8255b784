package features

import (
	"encoding/json"
	"errors"
	"testing"
)

func applicationDoc() map[string]any {
	return map[string]any{
		"age":               35,
		"annual_income":     80000.0,
		"employment_length": 8,
		"home_ownership":    "OWN",
		"purpose":           "home_improvement",
		"loan_amount":       20000.0,
		"term_months":       36,
		"interest_rate":     8.5,
		"dti":               15.2,
		"credit_score":      780.0,
		"delinquency_2yrs":  0,
		"num_open_acc":      4,
	}
}

func TestUnmarshalApplication(t *testing.T) {
	data, err := json.Marshal(applicationDoc())
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}

	app, err := UnmarshalApplication(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.CreditScore != 780 {
		t.Errorf("unexpected credit score: %f", app.CreditScore)
	}
	if app.HomeOwnership != OwnershipOwn {
		t.Errorf("unexpected ownership: %s", app.HomeOwnership)
	}
}

func TestUnmarshalApplication_MissingField(t *testing.T) {
	// An absent field must never be scored as its zero value.
	for _, field := range requiredFields {
		t.Run(field, func(t *testing.T) {
			doc := applicationDoc()
			delete(doc, field)

			data, err := json.Marshal(doc)
			if err != nil {
				t.Fatalf("marshal doc: %v", err)
			}

			_, err = UnmarshalApplication(data)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got: %v", err)
			}
			if ve.Field != field {
				t.Errorf("expected field %s, got %s", field, ve.Field)
			}
		})
	}
}

func TestUnmarshalApplication_WrongType(t *testing.T) {
	doc := applicationDoc()
	doc["credit_score"] = "seven hundred"

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}

	_, err = UnmarshalApplication(data)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got: %v", err)
	}
	if ve.Field != "credit_score" {
		t.Errorf("expected field credit_score, got %s", ve.Field)
	}
}

func TestUnmarshalApplication_NotAnObject(t *testing.T) {
	_, err := UnmarshalApplication([]byte(`[1, 2, 3]`))
	if err == nil {
		t.Fatal("expected error for non-object document")
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Errorf("non-object document should not map to a field error, got field %s", ve.Field)
	}
}
