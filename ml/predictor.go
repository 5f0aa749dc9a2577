package ml

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const numInputs = 2

// Input bounds and defaults of the two measurements.
const (
	VoltageMin     = 0.0
	VoltageMax     = 20.0
	CurrentMin     = 0.0
	CurrentMax     = 10.0
	DefaultVoltage = 7.5
	DefaultCurrent = 6.5
	InputStep      = 0.01
)

// Input is one voltage/current reading of the stack.
type Input struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
}

// DefaultInput is the reading the front-ends start from.
func DefaultInput() Input {
	return Input{Voltage: DefaultVoltage, Current: DefaultCurrent}
}

// Validate rejects NaN and values outside the accepted bounds.
func (in Input) Validate() error {
	if !inRange(in.Voltage, VoltageMin, VoltageMax) {
		return fmt.Errorf("%w: voltage %g not in [%g, %g]", ErrInputOutOfRange, in.Voltage, VoltageMin, VoltageMax)
	}
	if !inRange(in.Current, CurrentMin, CurrentMax) {
		return fmt.Errorf("%w: current %g not in [%g, %g]", ErrInputOutOfRange, in.Current, CurrentMin, CurrentMax)
	}
	return nil
}

func (in Input) vector() []float64 {
	return []float64{in.Voltage, in.Current}
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// TargetValue is one predicted target with its name and unit.
type TargetValue struct {
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// Prediction is the result of one inference.
type Prediction struct {
	Input
	LoadCondition   int           `json:"load_condition"`
	Targets         []TargetValue `json:"targets"`
	ArtifactVersion string        `json:"artifact_version"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Values returns the target values in model output order.
func (p *Prediction) Values() []float64 {
	values := make([]float64, len(p.Targets))
	for i, t := range p.Targets {
		values[i] = t.Value
	}
	return values
}

// Registry holds the artifact set currently used for inference.
type Registry struct {
	current atomic.Pointer[Artifacts]
}

// NewRegistry returns a registry serving artifacts, which may be nil until
// the first set is installed.
func NewRegistry(artifacts *Artifacts) *Registry {
	r := &Registry{}
	if artifacts != nil {
		r.current.Store(artifacts)
	}
	return r
}

// Current returns the artifact set in service, or nil.
func (r *Registry) Current() *Artifacts {
	return r.current.Load()
}

// Swap installs a new artifact set and returns the previous one.
func (r *Registry) Swap(artifacts *Artifacts) *Artifacts {
	return r.current.Swap(artifacts)
}

// Predictor runs scale → load → targets against the registry's current artifacts.
type Predictor struct {
	registry *Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewPredictor returns a Predictor reading artifacts from registry. A nil
// logger discards log output.
func NewPredictor(registry *Registry, logger *zap.Logger) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{registry: registry, logger: logger, now: time.Now}
}

// Predict validates in and runs both models on it.
func (p *Predictor) Predict(ctx context.Context, in Input) (*Prediction, error) {
	artifacts, err := p.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	prediction, err := p.run(artifacts, in)
	if err != nil {
		return nil, err
	}
	prediction.CreatedAt = p.now()
	return prediction, nil
}

// prepare checks ctx and in, and snapshots the artifact set to predict with.
func (p *Predictor) prepare(ctx context.Context, in Input) (*Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	artifacts := p.registry.Current()
	if artifacts == nil {
		return nil, ErrNotLoaded
	}
	return artifacts, nil
}

func (p *Predictor) run(artifacts *Artifacts, in Input) (*Prediction, error) {
	prediction, err := predict(artifacts, in)
	if err != nil {
		p.logger.Error("prediction failed",
			zap.Float64("voltage", in.Voltage),
			zap.Float64("current", in.Current),
			zap.String("artifact_version", artifacts.Version),
			zap.Error(err))
		return nil, err
	}
	p.logger.Debug("prediction",
		zap.Float64("voltage", in.Voltage),
		zap.Float64("current", in.Current),
		zap.Int("load_condition", prediction.LoadCondition))
	return prediction, nil
}

func predict(artifacts *Artifacts, in Input) (*Prediction, error) {
	scaled, err := artifacts.Scaler.Transform(in.vector())
	if err != nil {
		return nil, fmt.Errorf("scale input: %w", err)
	}

	load, err := artifacts.LoadModel.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("predict load: %w", err)
	}
	values, err := artifacts.TargetModel.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("predict targets: %w", err)
	}
	if len(values) != NumTargets {
		return nil, fmt.Errorf("%w: target model returned %d values", ErrInvalidArtifact, len(values))
	}

	result := &Prediction{
		Input:           in,
		LoadCondition:   int(math.RoundToEven(load[0])),
		Targets:         make([]TargetValue, NumTargets),
		ArtifactVersion: artifacts.Version,
	}
	for i, t := range targets {
		result.Targets[i] = TargetValue{Name: t.Name, Unit: t.Unit, Value: values[i]}
	}
	return result, nil
}
