package ml

import (
	"math"
	"reflect"
	"testing"
)

func fallbackMatrix(t *testing.T) ([][]float64, []int) {
	t.Helper()
	rows, labels := FallbackDrinkingSet()
	features, err := Matrix(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return features, labels
}

func TestFallbackForestMemorisesTrainingRows(t *testing.T) {
	features, labels := fallbackMatrix(t)
	forest := NewFallbackForest()
	if err := forest.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forest.Trees) != 10 {
		t.Fatalf("expected 10 trees, got %d", len(forest.Trees))
	}

	row := FeatureVector(FeatureRow{Age: 40, BMI: 30.5, GammaGTP: 120, Hemoglobin: 14.5})
	label, err := forest.Predict(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 1 {
		t.Fatalf("expected drinker label 1, got %d", label)
	}
	proba, err := forest.PredictProba(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proba[1] < 0.5 || math.Abs(proba[0]+proba[1]-1) > 1e-9 {
		t.Fatalf("unexpected probabilities %v", proba)
	}
}

func TestFallbackForestIsDeterministic(t *testing.T) {
	features, labels := fallbackMatrix(t)
	first := NewFallbackForest()
	second := NewFallbackForest()
	if err := first.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := second.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first.Trees, second.Trees) {
		t.Fatal("expected identical trees for the same seed")
	}
}

func TestRandomForestBootstrap(t *testing.T) {
	var features [][]float64
	var labels []int
	for i := 0; i < 40; i++ {
		x := float64(i)
		features = append(features, []float64{x, 100 - x})
		if i < 20 {
			labels = append(labels, 0)
		} else {
			labels = append(labels, 1)
		}
	}

	forest := NewRandomForest(25, 4, 7)
	if err := forest.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tc := range []struct {
		row  []float64
		want int
	}{
		{[]float64{2, 98}, 0},
		{[]float64{37, 63}, 1},
	} {
		label, err := forest.Predict(tc.row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != tc.want {
			t.Fatalf("row %v: expected %d, got %d", tc.row, tc.want, label)
		}
	}
}

func TestRandomForestNotFitted(t *testing.T) {
	forest := &RandomForest{}
	if _, err := forest.PredictProba([]float64{1, 2, 3, 4}); err != ErrNotFitted {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
}
