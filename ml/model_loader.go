package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// ArtifactPaths locates the three fitted artifacts on disk.
type ArtifactPaths struct {
	Scaler      string `yaml:"scaler_path" env:"SCALER_PATH"`
	LoadModel   string `yaml:"load_model_path" env:"LOAD_MODEL_PATH"`
	TargetModel string `yaml:"target_model_path" env:"TARGET_MODEL_PATH"`
}

func (p ArtifactPaths) All() []string {
	return []string{p.Scaler, p.LoadModel, p.TargetModel}
}

// Artifacts is an immutable, validated set of fitted objects.
type Artifacts struct {
	Scaler      Transformer
	LoadModel   Regressor
	TargetModel Regressor
	Version     string
}

type loadOptions struct {
	progress func(name string)
}

type LoadOption func(*loadOptions)

// WithProgress registers a callback invoked after each artifact is loaded.
func WithProgress(fn func(name string)) LoadOption {
	return func(o *loadOptions) {
		o.progress = fn
	}
}

// LoadScaler reads a scaler artifact and returns it with the raw bytes.
func LoadScaler(path string) (Transformer, []byte, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read scaler: %w", err)
	}
	var spec ScalerSpec
	if err := json.Unmarshal(payload, &spec); err != nil {
		return nil, nil, fmt.Errorf("%w: decode scaler %s: %v", ErrInvalidArtifact, path, err)
	}
	scaler, err := NewScaler(spec)
	if err != nil {
		return nil, nil, err
	}
	return scaler, payload, nil
}

// LoadForest reads a forest artifact and returns it with the raw bytes.
func LoadForest(path string) (*RandomForest, []byte, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read model: %w", err)
	}
	var spec ForestSpec
	if err := json.Unmarshal(payload, &spec); err != nil {
		return nil, nil, fmt.Errorf("%w: decode model %s: %v", ErrInvalidArtifact, path, err)
	}
	forest, err := NewRandomForest(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return forest, payload, nil
}

// LoadArtifacts reads and cross-checks the scaler, load model and target model.
func LoadArtifacts(paths ArtifactPaths, opts ...LoadOption) (*Artifacts, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	step := func(name string) {
		if o.progress != nil {
			o.progress(name)
		}
	}

	scaler, scalerRaw, err := LoadScaler(paths.Scaler)
	if err != nil {
		return nil, err
	}
	step("scaler")

	loadModel, loadRaw, err := LoadForest(paths.LoadModel)
	if err != nil {
		return nil, err
	}
	step("load model")

	targetModel, targetRaw, err := LoadForest(paths.TargetModel)
	if err != nil {
		return nil, err
	}
	step("target model")

	if scaler.NumFeatures() != numInputs {
		return nil, fmt.Errorf("%w: scaler has %d features, want %d", ErrInvalidArtifact, scaler.NumFeatures(), numInputs)
	}
	if loadModel.NumFeatures() != numInputs {
		return nil, fmt.Errorf("%w: load model has %d features, want %d", ErrInvalidArtifact, loadModel.NumFeatures(), numInputs)
	}
	if targetModel.NumFeatures() != numInputs {
		return nil, fmt.Errorf("%w: target model has %d features, want %d", ErrInvalidArtifact, targetModel.NumFeatures(), numInputs)
	}
	if loadModel.NumOutputs() != 1 {
		return nil, fmt.Errorf("%w: load model has %d outputs, want 1", ErrInvalidArtifact, loadModel.NumOutputs())
	}
	if targetModel.NumOutputs() != NumTargets {
		return nil, fmt.Errorf("%w: target model has %d outputs, want %d", ErrInvalidArtifact, targetModel.NumOutputs(), NumTargets)
	}

	return &Artifacts{
		Scaler:      scaler,
		LoadModel:   loadModel,
		TargetModel: targetModel,
		Version:     artifactVersion(scalerRaw, loadRaw, targetRaw),
	}, nil
}

func artifactVersion(payloads ...[]byte) string {
	h := sha256.New()
	for _, p := range payloads {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
