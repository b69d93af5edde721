package ml

import (
	"errors"
	"math"
	"math/rand"
)

// Dataset holds rows with both target labels side by side.
type Dataset struct {
	Rows     []FeatureRow
	Smoking  []int
	Drinking []int
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

func (d *Dataset) Append(row FeatureRow, smoking, drinking int) {
	d.Rows = append(d.Rows, row)
	d.Smoking = append(d.Smoking, smoking)
	d.Drinking = append(d.Drinking, drinking)
}

func (d *Dataset) Validate() error {
	if d.Len() == 0 {
		return errors.New("dataset is empty")
	}
	if len(d.Smoking) != d.Len() || len(d.Drinking) != d.Len() {
		return errors.New("dataset rows/labels length mismatch")
	}
	return nil
}

// Split shuffles with seed and holds out testRatio of the rows.
func (d *Dataset) Split(testRatio float64, seed int64) (train, test Dataset, err error) {
	if err := d.Validate(); err != nil {
		return Dataset{}, Dataset{}, err
	}
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(d.Len())

	split := int(math.Round(float64(d.Len()) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			train.Append(d.Rows[idx], d.Smoking[idx], d.Drinking[idx])
		} else {
			test.Append(d.Rows[idx], d.Smoking[idx], d.Drinking[idx])
		}
	}
	return train, test, nil
}

// FallbackDrinkingSet is the four-row dataset the inline drinking model is fit on.
func FallbackDrinkingSet() ([]FeatureRow, []int) {
	rows := []FeatureRow{
		{Age: 25, BMI: 21.0, GammaGTP: 20, Hemoglobin: 13.0},
		{Age: 40, BMI: 30.5, GammaGTP: 120, Hemoglobin: 14.5},
		{Age: 35, BMI: 24.0, GammaGTP: 30, Hemoglobin: 13.5},
		{Age: 55, BMI: 28.0, GammaGTP: 90, Hemoglobin: 15.0},
	}
	labels := []int{0, 1, 0, 1}
	return rows, labels
}

// NewFallbackForest returns the fixed, unfitted forest used for the inline drinking model.
func NewFallbackForest() *RandomForest {
	return &RandomForest{
		NEstimators: 10,
		MaxDepth:    3,
		Bootstrap:   false,
		Seed:        42,
	}
}
