package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres each column and divides by its population standard deviation.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *StandardScaler) Fit(features [][]float64) error {
	columns, err := columnsOf(features)
	if err != nil {
		return err
	}
	s.Mean = make([]float64, len(columns))
	s.Scale = make([]float64, len(columns))
	for i, column := range columns {
		mean, std := stat.PopMeanStdDev(column, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[i] = mean
		s.Scale[i] = std
	}
	return nil
}

func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(s.Mean) == 0 || len(s.Scale) != len(s.Mean) {
		return nil, ErrNotFitted
	}
	if len(features) != len(s.Mean) {
		return nil, fmt.Errorf("expected %d features, got %d", len(s.Mean), len(features))
	}
	out := make([]float64, len(features))
	floats.SubTo(out, features, s.Mean)
	floats.Div(out, s.Scale)
	return out, nil
}

// MinMaxScaler maps each column onto [0, 1] using the range seen during Fit.
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

func (s *MinMaxScaler) Fit(features [][]float64) error {
	columns, err := columnsOf(features)
	if err != nil {
		return err
	}
	s.Min = make([]float64, len(columns))
	s.Max = make([]float64, len(columns))
	for i, column := range columns {
		s.Min[i] = floats.Min(column)
		s.Max[i] = floats.Max(column)
	}
	return nil
}

func (s *MinMaxScaler) Transform(features []float64) ([]float64, error) {
	if len(s.Min) == 0 {
		return nil, ErrNotFitted
	}
	return NormalizeVector(features, s.Min, s.Max)
}

func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

func NormalizeVector(values []float64, mins []float64, maxs []float64) ([]float64, error) {
	if len(values) != len(mins) || len(values) != len(maxs) {
		return nil, errors.New("values/mins/maxs length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = NormalizeFeature(values[i], mins[i], maxs[i])
	}
	return result, nil
}

// TransformAll applies scaler to every row.
func TransformAll(scaler Scaler, features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		scaled, err := scaler.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

func columnsOf(features [][]float64) ([][]float64, error) {
	if len(features) == 0 {
		return nil, errors.New("features is empty")
	}
	width := len(features[0])
	if width == 0 {
		return nil, errors.New("features have no columns")
	}
	columns := make([][]float64, width)
	for i := range columns {
		columns[i] = make([]float64, len(features))
	}
	for r, row := range features {
		if len(row) != width {
			return nil, errors.New("ragged feature matrix")
		}
		for c, value := range row {
			columns[c][r] = value
		}
	}
	return columns, nil
}
