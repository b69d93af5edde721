// Package predictortest writes small, deterministic artifact sets for tests.
package predictortest

import (
	"math/rand"
	"path/filepath"
	"testing"

	"healthpredict/ml"
)

// Dataset returns n synthetic rows inside the declared input domain.
func Dataset(n int, seed int64) ml.Dataset {
	rng := rand.New(rand.NewSource(seed))
	var data ml.Dataset
	for i := 0; i < n; i++ {
		row := ml.FeatureRow{
			Age:        float64(20 + rng.Intn(60)),
			BMI:        18 + rng.Float64()*14,
			GammaGTP:   10 + rng.Float64()*190,
			Hemoglobin: 11 + rng.Float64()*6,
		}
		smoking := 0
		if row.Hemoglobin > 14.5 && row.Age < 60 {
			smoking = 1
		}
		drinking := 0
		if row.GammaGTP > 60 {
			drinking = 1
		}
		data.Append(row, smoking, drinking)
	}
	return data
}

// WriteArtifacts fits a scaler, a smoking forest and a drinking booster and
// saves them under dir with the default file names.
func WriteArtifacts(tb testing.TB, dir string) {
	tb.Helper()

	data := Dataset(200, 1)
	features, err := ml.Matrix(data.Rows)
	if err != nil {
		tb.Fatalf("matrix: %v", err)
	}
	scaler := &ml.StandardScaler{}
	if err := scaler.Fit(features); err != nil {
		tb.Fatalf("fit scaler: %v", err)
	}
	scaled, err := ml.TransformAll(scaler, features)
	if err != nil {
		tb.Fatalf("scale: %v", err)
	}

	smoking := ml.NewRandomForest(15, 5, 42)
	if err := smoking.Fit(scaled, data.Smoking); err != nil {
		tb.Fatalf("fit smoking: %v", err)
	}
	drinking := ml.NewGradientBoosting(30, 0.1, 3)
	if err := drinking.Fit(scaled, data.Drinking); err != nil {
		tb.Fatalf("fit drinking: %v", err)
	}

	for name, model := range map[string]any{
		"scaler.json":            scaler,
		"rf_smoking_model.json":  smoking,
		"gb_drinking_model.json": drinking,
	} {
		if err := ml.SaveArtifact(filepath.Join(dir, name), model); err != nil {
			tb.Fatalf("save %s: %v", name, err)
		}
	}
}
