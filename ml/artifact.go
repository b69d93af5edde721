package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const ArtifactVersion = "1"

type ArtifactKind string

const (
	KindDecisionTree     ArtifactKind = "decision_tree"
	KindRandomForest     ArtifactKind = "random_forest"
	KindGradientBoosting ArtifactKind = "gradient_boosting"
	KindStandardScaler   ArtifactKind = "standard_scaler"
	KindMinMaxScaler     ArtifactKind = "minmax_scaler"
)

// Artifact is the on-disk envelope for a fitted model or scaler.
type Artifact struct {
	Kind      ArtifactKind    `json:"kind"`
	Version   string          `json:"version"`
	Features  []string        `json:"features"`
	CreatedAt time.Time       `json:"created_at"`
	Params    json.RawMessage `json:"params"`
}

func (a *Artifact) Validate() error {
	if a.Kind == "" {
		return errors.New("kind is required")
	}
	if a.Version != ArtifactVersion {
		return fmt.Errorf("unsupported artifact version %q", a.Version)
	}
	if len(a.Params) == 0 {
		return errors.New("params are required")
	}
	return CheckFeatureNames(a.Features)
}

func KindOf(model any) (ArtifactKind, error) {
	switch model.(type) {
	case *DecisionTree:
		return KindDecisionTree, nil
	case *RandomForest:
		return KindRandomForest, nil
	case *GradientBoosting:
		return KindGradientBoosting, nil
	case *StandardScaler:
		return KindStandardScaler, nil
	case *MinMaxScaler:
		return KindMinMaxScaler, nil
	default:
		return "", fmt.Errorf("unsupported artifact type %T", model)
	}
}

// SaveArtifact writes model with the canonical feature names.
func SaveArtifact(path string, model any) error {
	kind, err := KindOf(model)
	if err != nil {
		return err
	}
	params, err := json.Marshal(model)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(Artifact{
		Kind:      kind,
		Version:   ArtifactVersion,
		Features:  FeatureNames(),
		CreatedAt: time.Now().UTC(),
		Params:    params,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// ReadArtifact reads and validates the envelope. A missing file keeps
// os.ErrNotExist in the chain.
func ReadArtifact(path string) (*Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &artifact, nil
}

func LoadClassifier(path string) (Classifier, error) {
	artifact, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	var model interface {
		Classifier
		validate() error
	}
	switch artifact.Kind {
	case KindDecisionTree:
		model = &DecisionTree{}
	case KindRandomForest:
		model = &RandomForest{}
	case KindGradientBoosting:
		model = &GradientBoosting{}
	default:
		return nil, fmt.Errorf("%s: %q is not a classifier", path, artifact.Kind)
	}
	if err := json.Unmarshal(artifact.Params, model); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", path, err)
	}
	if err := model.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model, nil
}

func LoadScaler(path string) (Scaler, error) {
	artifact, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	width := len(FeatureNames())
	switch artifact.Kind {
	case KindStandardScaler:
		scaler := &StandardScaler{}
		if err := json.Unmarshal(artifact.Params, scaler); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", path, err)
		}
		if len(scaler.Mean) != width || len(scaler.Scale) != width {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFitted)
		}
		return scaler, nil
	case KindMinMaxScaler:
		scaler := &MinMaxScaler{}
		if err := json.Unmarshal(artifact.Params, scaler); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", path, err)
		}
		if len(scaler.Min) != width || len(scaler.Max) != width {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFitted)
		}
		return scaler, nil
	default:
		return nil, fmt.Errorf("%s: %q is not a scaler", path, artifact.Kind)
	}
}
