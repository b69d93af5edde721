package predictor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"healthpredict/ml"

	"go.uber.org/zap"
)

// DrinkingSource selects where the drinking classifier comes from.
type DrinkingSource string

const (
	DrinkingFromArtifact DrinkingSource = "artifact"
	DrinkingInline       DrinkingSource = "inline"
)

// Config names the artifact files and how they are used.
type Config struct {
	Dir            string
	SmokingFile    string
	DrinkingFile   string
	ScalerFile     string
	DrinkingSource DrinkingSource
	CacheSize      int
}

func DefaultConfig() Config {
	return Config{
		SmokingFile:    "rf_smoking_model.json",
		DrinkingFile:   "gb_drinking_model.json",
		ScalerFile:     "scaler.json",
		DrinkingSource: DrinkingFromArtifact,
		CacheSize:      256,
	}
}

// ResolvedDir is Dir, or the directory of the running executable when Dir is empty.
func (c Config) ResolvedDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// RequiredFiles lists the artifact names that must exist for this configuration.
func (c Config) RequiredFiles() []string {
	if c.DrinkingSource == DrinkingInline {
		return []string{c.SmokingFile, c.ScalerFile}
	}
	return []string{c.SmokingFile, c.DrinkingFile, c.ScalerFile}
}

// ArtifactSet is an immutable group of loaded artifacts.
type ArtifactSet struct {
	Smoking        ml.Classifier
	Drinking       ml.Classifier
	Scaler         ml.Scaler
	DrinkingSource DrinkingSource
	Generation     uint64
	LoadedAt       time.Time
}

// Loader reads artifact sets from disk and memoizes the inline drinking model.
type Loader struct {
	cfg    Config
	logger *zap.Logger

	mu           sync.Mutex
	generation   uint64
	fallbackFor  ml.Scaler
	fallback     ml.Classifier
	fallbackFits int
}

func NewLoader(cfg Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, logger: logger}
}

func (l *Loader) Config() Config {
	return l.cfg
}

// Load reads every required artifact. Missing files are reported together.
func (l *Loader) Load() (*ArtifactSet, error) {
	dir := l.cfg.ResolvedDir()
	required := l.cfg.RequiredFiles()

	var missing []string
	for _, name := range required {
		if _, err := os.Stat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ArtifactError{Required: required, Missing: missing}
	}

	scaler, err := ml.LoadScaler(filepath.Join(dir, l.cfg.ScalerFile))
	if err != nil {
		return nil, &ArtifactError{Required: required, Err: err}
	}
	smoking, err := ml.LoadClassifier(filepath.Join(dir, l.cfg.SmokingFile))
	if err != nil {
		return nil, &ArtifactError{Required: required, Err: err}
	}

	var drinking ml.Classifier
	if l.cfg.DrinkingSource == DrinkingInline {
		drinking, err = l.inlineDrinking(scaler)
	} else {
		drinking, err = ml.LoadClassifier(filepath.Join(dir, l.cfg.DrinkingFile))
	}
	if err != nil {
		return nil, &ArtifactError{Required: required, Err: err}
	}

	l.mu.Lock()
	l.generation++
	generation := l.generation
	l.mu.Unlock()

	l.logger.Info("artifacts loaded",
		zap.String("dir", dir),
		zap.String("drinking_source", string(l.cfg.DrinkingSource)),
		zap.Uint64("generation", generation),
	)
	return &ArtifactSet{
		Smoking:        smoking,
		Drinking:       drinking,
		Scaler:         scaler,
		DrinkingSource: l.cfg.DrinkingSource,
		Generation:     generation,
		LoadedAt:       time.Now(),
	}, nil
}

// inlineDrinking fits the four-row fallback forest on scaled rows. The fit is
// reused across loads until the scaler parameters change.
func (l *Loader) inlineDrinking(scaler ml.Scaler) (ml.Classifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fallback != nil && reflect.DeepEqual(l.fallbackFor, scaler) {
		return l.fallback, nil
	}
	model, err := FitFallback(scaler)
	if err != nil {
		return nil, fmt.Errorf("inline drinking model: %w", err)
	}
	l.fallback = model
	l.fallbackFor = scaler
	l.fallbackFits++
	l.logger.Info("inline drinking model fitted", zap.Int("fits", l.fallbackFits))
	return model, nil
}

// FallbackFits reports how many times the inline model has been fitted.
func (l *Loader) FallbackFits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fallbackFits
}

// FitFallback fits the fixed fallback forest on the scaled fallback rows.
func FitFallback(scaler ml.Scaler) (*ml.RandomForest, error) {
	rows, labels := ml.FallbackDrinkingSet()
	features, err := ml.Matrix(rows)
	if err != nil {
		return nil, err
	}
	scaled, err := ml.TransformAll(scaler, features)
	if err != nil {
		return nil, err
	}
	model := ml.NewFallbackForest()
	if err := model.Fit(scaled, labels); err != nil {
		return nil, err
	}
	return model, nil
}
