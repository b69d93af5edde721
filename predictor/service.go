package predictor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"healthpredict/ml"
	"healthpredict/pipeline"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Target is one of the two predicted behaviours.
type Target string

const (
	TargetSmoking  Target = "smoking"
	TargetDrinking Target = "drinking"
)

// Outcome is the prediction for one target.
type Outcome struct {
	Target        Target    `json:"target"`
	Label         int       `json:"label"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
}

// Result is derived per request and never persisted.
type Result struct {
	Input    ml.FeatureRow `json:"input"`
	Smoking  Outcome       `json:"smoking"`
	Drinking Outcome       `json:"drinking"`
}

// Status describes the "artifacts loaded?" gate.
type Status struct {
	Ready          bool           `json:"ready"`
	DrinkingSource DrinkingSource `json:"drinking_source"`
	Dir            string         `json:"artifact_dir"`
	Required       []string       `json:"required"`
	Missing        []string       `json:"missing,omitempty"`
	Error          string         `json:"error,omitempty"`
	LoadedAt       time.Time      `json:"loaded_at,omitempty"`
	Generation     uint64         `json:"generation"`
}

type cacheKey struct {
	generation uint64
	row        ml.FeatureRow
}

// Service gates and runs predictions against the current artifact set.
type Service struct {
	loader  *Loader
	cleaner *pipeline.DataCleaner
	cache   *lru.Cache[cacheKey, Result]
	logger  *zap.Logger

	mu        sync.RWMutex
	artifacts *ArtifactSet
	loadErr   error
}

func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		loader:  NewLoader(cfg, logger),
		cleaner: pipeline.NewDataCleaner(logger),
		logger:  logger,
		loadErr: &ArtifactError{Required: cfg.RequiredFiles()},
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[cacheKey, Result](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("prediction cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Load (re)reads the artifacts. On failure the previous set is dropped and
// prediction is disabled; the returned error is an *ArtifactError.
func (s *Service) Load() error {
	set, err := s.loader.Load()

	s.mu.Lock()
	s.artifacts = set
	s.loadErr = err
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Purge()
	}
	if err != nil {
		s.logger.Warn("prediction disabled", zap.Error(err))
	}
	return err
}

// Ready reports whether predictions are enabled.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifacts != nil
}

func (s *Service) Status() Status {
	cfg := s.loader.Config()

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Ready:          s.artifacts != nil,
		DrinkingSource: cfg.DrinkingSource,
		Dir:            cfg.ResolvedDir(),
		Required:       cfg.RequiredFiles(),
	}
	if s.artifacts != nil {
		status.LoadedAt = s.artifacts.LoadedAt
		status.Generation = s.artifacts.Generation
	}
	if s.loadErr != nil {
		status.Error = s.loadErr.Error()
		var artifactErr *ArtifactError
		if errors.As(s.loadErr, &artifactErr) {
			status.Missing = artifactErr.Missing
		}
	}
	return status
}

// Loader exposes the artifact loader.
func (s *Service) Loader() *Loader {
	return s.loader
}

// Predict validates row and runs both classifiers on the scaled features.
func (s *Service) Predict(ctx context.Context, row ml.FeatureRow) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := s.cleaner.Check(row); err != nil {
		return Result{}, err
	}

	s.mu.RLock()
	set, loadErr := s.artifacts, s.loadErr
	s.mu.RUnlock()
	if set == nil {
		return Result{}, loadErr
	}

	key := cacheKey{generation: set.Generation, row: row}
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	result, err := predictSet(set, row)
	if err != nil {
		s.logger.Error("prediction failed", zap.Error(err), zap.Any("input", row))
		return Result{}, err
	}
	if s.cache != nil {
		s.cache.Add(key, result)
	}
	return result, nil
}

func predictSet(set *ArtifactSet, row ml.FeatureRow) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PredictionError{Stage: "predict", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	scaled, err := set.Scaler.Transform(ml.FeatureVector(row))
	if err != nil {
		return Result{}, &PredictionError{Stage: "scaler", Err: err}
	}
	smoking, err := predictTarget(TargetSmoking, set.Smoking, scaled)
	if err != nil {
		return Result{}, err
	}
	drinking, err := predictTarget(TargetDrinking, set.Drinking, scaled)
	if err != nil {
		return Result{}, err
	}
	return Result{Input: row, Smoking: smoking, Drinking: drinking}, nil
}

func predictTarget(target Target, model ml.Classifier, features []float64) (Outcome, error) {
	stage := string(target) + " model"
	label, err := model.Predict(features)
	if err != nil {
		return Outcome{}, &PredictionError{Stage: stage, Err: err}
	}
	proba, err := model.PredictProba(features)
	if err != nil {
		return Outcome{}, &PredictionError{Stage: stage, Err: err}
	}
	if label != 0 && label != 1 {
		return Outcome{}, &PredictionError{Stage: stage, Err: fmt.Errorf("label %d is not binary", label)}
	}
	if len(proba) != 2 {
		return Outcome{}, &PredictionError{Stage: stage, Err: fmt.Errorf("expected 2 class probabilities, got %d", len(proba))}
	}
	return Outcome{
		Target:        target,
		Label:         label,
		Confidence:    ml.Confidence(proba),
		Probabilities: proba,
	}, nil
}
