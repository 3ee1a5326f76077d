// Package ml trains and serves the placement classifier. A Bundle keeps the
// classifier together with the encoder registry and field order it was trained
// with; Save and Load persist that pairing as a single file.
//
// Classifiers are pluggable through RegisterClassifier. The RBF support vector
// classifier (SVC) is the reference implementation.
package ml

import (
	"context"

	"placement-predictor/internal/features"
)

// PredictorInterface is what the HTTP layer needs from a prediction service.
type PredictorInterface interface {
	// Predict classifies one record. Input errors are reported with the
	// offending field and never alter the loaded model.
	Predict(ctx context.Context, rec features.Record) (Prediction, error)

	// Bundle returns the loaded model bundle.
	Bundle() *Bundle

	// Health reports counters and the last error.
	Health() HealthStatus
}

var _ PredictorInterface = (*Predictor)(nil)
