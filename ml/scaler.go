package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// ScalerSpec is the serialized form of a fitted scaler.
type ScalerSpec struct {
	Kind         string     `json:"kind"`
	Mean         []float64  `json:"mean,omitempty"`
	Scale        []float64  `json:"scale,omitempty"`
	DataMin      []float64  `json:"data_min,omitempty"`
	DataMax      []float64  `json:"data_max,omitempty"`
	FeatureRange [2]float64 `json:"feature_range,omitempty"`
}

// StandardScaler centers each feature on its mean and divides by its scale.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler returns a scaler computing (x - mean) / scale per feature.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("%w: standard scaler has %d means and %d scales", ErrInvalidArtifact, len(mean), len(scale))
	}
	if !allFinite(mean) || !allFinite(scale) {
		return nil, fmt.Errorf("%w: standard scaler has non-finite parameters", ErrInvalidArtifact)
	}
	s := &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: zerosToOne(scale),
	}
	return s, nil
}

func (s *StandardScaler) NumFeatures() int { return len(s.mean) }

// Transform scales features, which must have NumFeatures entries.
func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.mean) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrFeatureMismatch, len(s.mean), len(features))
	}
	out := append([]float64(nil), features...)
	floats.Sub(out, s.mean)
	floats.Div(out, s.scale)
	return out, nil
}

// MinMaxScaler maps each feature from [DataMin, DataMax] onto the feature range.
type MinMaxScaler struct {
	dataMin  []float64
	dataSpan []float64
	lo, hi   float64
}

// NewMinMaxScaler maps [dataMin, dataMax] onto featureRange per feature.
func NewMinMaxScaler(dataMin, dataMax []float64, featureRange [2]float64) (*MinMaxScaler, error) {
	if len(dataMin) == 0 || len(dataMin) != len(dataMax) {
		return nil, fmt.Errorf("%w: minmax scaler has %d minimums and %d maximums", ErrInvalidArtifact, len(dataMin), len(dataMax))
	}
	if !allFinite(dataMin) || !allFinite(dataMax) {
		return nil, fmt.Errorf("%w: minmax scaler has non-finite parameters", ErrInvalidArtifact)
	}
	lo, hi := featureRange[0], featureRange[1]
	if lo == 0 && hi == 0 {
		hi = 1
	}
	if lo >= hi {
		return nil, fmt.Errorf("%w: minmax feature range [%g, %g] is empty", ErrInvalidArtifact, lo, hi)
	}
	span := make([]float64, len(dataMin))
	floats.SubTo(span, dataMax, dataMin)
	return &MinMaxScaler{
		dataMin:  append([]float64(nil), dataMin...),
		dataSpan: zerosToOne(span),
		lo:       lo,
		hi:       hi,
	}, nil
}

func (s *MinMaxScaler) NumFeatures() int { return len(s.dataMin) }

func (s *MinMaxScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.dataMin) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrFeatureMismatch, len(s.dataMin), len(features))
	}
	out := append([]float64(nil), features...)
	floats.Sub(out, s.dataMin)
	floats.Div(out, s.dataSpan)
	floats.Scale(s.hi-s.lo, out)
	floats.AddConst(s.lo, out)
	return out, nil
}

// NewScaler builds a Transformer from its serialized form.
func NewScaler(spec ScalerSpec) (Transformer, error) {
	switch spec.Kind {
	case ScalerStandard:
		return NewStandardScaler(spec.Mean, spec.Scale)
	case ScalerMinMax:
		return NewMinMaxScaler(spec.DataMin, spec.DataMax, spec.FeatureRange)
	default:
		return nil, fmt.Errorf("%w: unsupported scaler kind %q", ErrInvalidArtifact, spec.Kind)
	}
}

// zerosToOne mirrors how fitted scalers treat constant features.
func zerosToOne(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == 0 {
			out[i] = 1
			continue
		}
		out[i] = v
	}
	return out
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
