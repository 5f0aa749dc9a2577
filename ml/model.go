package ml

import (
	"context"
	"errors"
)

var (
	ErrInputOutOfRange = errors.New("input out of range")
	ErrInvalidArtifact = errors.New("invalid model artifact")
	ErrFeatureMismatch = errors.New("feature count mismatch")
	ErrNotLoaded       = errors.New("model artifacts not loaded")
)

// Transformer maps a raw feature vector into the space the models were fitted on.
type Transformer interface {
	Transform(features []float64) ([]float64, error)
	NumFeatures() int
}

// Regressor predicts one or more continuous outputs from a scaled feature vector.
type Regressor interface {
	Predict(features []float64) ([]float64, error)
	NumFeatures() int
	NumOutputs() int
}

// Service is what the front-ends depend on.
type Service interface {
	Predict(ctx context.Context, in Input) (*Prediction, error)
}
