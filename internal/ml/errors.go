package ml

import "errors"

var (
	// ErrModelUnavailable is returned when no model artifact was loaded at
	// startup and the heuristic fallback is disabled.
	ErrModelUnavailable = errors.New("model artifact not loaded")

	// ErrSchemaMismatch is returned when the feature vector does not match the
	// column count the model was trained on.
	ErrSchemaMismatch = errors.New("feature vector does not match model schema")
)
