package ml

import (
	"math"
	"testing"
)

func TestGradientBoostingSeparable(t *testing.T) {
	var features [][]float64
	var labels []int
	for i := 0; i < 20; i++ {
		features = append(features, []float64{float64(i)})
		if i < 10 {
			labels = append(labels, 0)
		} else {
			labels = append(labels, 1)
		}
	}

	model := NewGradientBoosting(50, 0.1, 2)
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(model.InitScore) > 1e-9 {
		t.Fatalf("expected zero log-odds prior for balanced labels, got %f", model.InitScore)
	}

	low, err := model.PredictProba([]float64{2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	high, err := model.PredictProba([]float64{18})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if low[1] >= 0.5 || high[1] <= 0.5 {
		t.Fatalf("expected separation, got low=%v high=%v", low, high)
	}
	if math.Abs(high[0]+high[1]-1) > 1e-9 {
		t.Fatalf("probabilities must sum to 1: %v", high)
	}
	label, err := model.Predict([]float64{18})
	if err != nil || label != 1 {
		t.Fatalf("expected label 1, got %d (%v)", label, err)
	}
}

func TestGradientBoostingSingleClass(t *testing.T) {
	model := NewGradientBoosting(5, 0.1, 2)
	if err := model.Fit([][]float64{{1}, {2}, {3}}, []int{1, 1, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proba, err := model.PredictProba([]float64{2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsNaN(proba[1]) || proba[1] < 0.99 {
		t.Fatalf("expected near-certain positive, got %v", proba)
	}
}
