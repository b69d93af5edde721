package ml

import (
	"errors"
	"fmt"
)

// FeatureRow is one biometric sample in the order the models were fit with.
type FeatureRow struct {
	Age        float64 `json:"age"`
	BMI        float64 `json:"BMI"`
	GammaGTP   float64 `json:"gamma_GTP"`
	Hemoglobin float64 `json:"hemoglobin"`
}

// WidgetKind is how a field is collected on the form.
type WidgetKind string

const (
	WidgetSlider WidgetKind = "slider"
	WidgetNumber WidgetKind = "number"
)

// FieldSpec describes the declared input domain of one feature.
type FieldSpec struct {
	Name    string     `json:"name"`
	Label   string     `json:"label"`
	Widget  WidgetKind `json:"widget"`
	Min     float64    `json:"min"`
	Max     float64    `json:"max"`
	Default float64    `json:"default"`
	Step    float64    `json:"step"`
}

// Contains reports whether value lies inside [Min, Max].
func (f FieldSpec) Contains(value float64) bool {
	return value >= f.Min && value <= f.Max
}

// Clamp pins value into [Min, Max] the way a slider would.
func (f FieldSpec) Clamp(value float64) float64 {
	if value < f.Min {
		return f.Min
	}
	if value > f.Max {
		return f.Max
	}
	return value
}

var inputSchema = []FieldSpec{
	{Name: "age", Label: "Age", Widget: WidgetSlider, Min: 10, Max: 100, Default: 30, Step: 1},
	{Name: "BMI", Label: "BMI (Body Mass Index)", Widget: WidgetSlider, Min: 10.0, Max: 40.0, Default: 22.0, Step: 0.1},
	{Name: "gamma_GTP", Label: "Gamma GTP (Liver Enzyme)", Widget: WidgetNumber, Min: 0.0, Max: 500.0, Default: 30.0, Step: 0.1},
	{Name: "hemoglobin", Label: "Hemoglobin (g/dL)", Widget: WidgetNumber, Min: 5.0, Max: 20.0, Default: 13.0, Step: 0.1},
}

// InputSchema returns the field specs in feature order.
func InputSchema() []FieldSpec {
	return append([]FieldSpec(nil), inputSchema...)
}

// DefaultRow is the row the form shows before any interaction.
func DefaultRow() FeatureRow {
	row, _ := RowFromVector([]float64{
		inputSchema[0].Default,
		inputSchema[1].Default,
		inputSchema[2].Default,
		inputSchema[3].Default,
	})
	return row
}

// FeatureNames returns the canonical column names. Artifacts must record the same list.
func FeatureNames() []string {
	return []string{
		"age",
		"BMI",
		"gamma_GTP",
		"hemoglobin",
	}
}

func FeatureVector(row FeatureRow) []float64 {
	return []float64{
		row.Age,
		row.BMI,
		row.GammaGTP,
		row.Hemoglobin,
	}
}

func RowFromVector(values []float64) (FeatureRow, error) {
	if len(values) != len(FeatureNames()) {
		return FeatureRow{}, fmt.Errorf("expected %d features, got %d", len(FeatureNames()), len(values))
	}
	return FeatureRow{
		Age:        values[0],
		BMI:        values[1],
		GammaGTP:   values[2],
		Hemoglobin: values[3],
	}, nil
}

// Value returns the feature stored under name.
func (r FeatureRow) Value(name string) (float64, error) {
	for i, n := range FeatureNames() {
		if n == name {
			return FeatureVector(r)[i], nil
		}
	}
	return 0, fmt.Errorf("unknown feature %q", name)
}

// Matrix stacks rows into feature vectors.
func Matrix(rows []FeatureRow) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, errors.New("rows is empty")
	}
	vectors := make([][]float64, len(rows))
	for i, row := range rows {
		vectors[i] = FeatureVector(row)
	}
	return vectors, nil
}

// CheckFeatureNames verifies names matches FeatureNames exactly, including order.
func CheckFeatureNames(names []string) error {
	want := FeatureNames()
	if len(names) != len(want) {
		return fmt.Errorf("%w: expected %v, got %v", ErrFeatureMismatch, want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			return fmt.Errorf("%w: column %d is %q, expected %q", ErrFeatureMismatch, i, names[i], want[i])
		}
	}
	return nil
}
