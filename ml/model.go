package ml

import "errors"

var (
	ErrNotFitted       = errors.New("model not trained")
	ErrFeatureMismatch = errors.New("feature mismatch")

	errInvalidTree  = errors.New("invalid tree state")
	errFeatureIndex = errors.New("feature index out of range")
)

// Classifier is the capability the predictor needs from a fitted model.
type Classifier interface {
	Predict(features []float64) (int, error)
	PredictProba(features []float64) ([]float64, error)
}

// Trainer fits a binary classifier on labelled vectors.
type Trainer interface {
	Classifier
	Fit(features [][]float64, labels []int) error
}

// Scaler maps a raw feature vector into the space the classifiers were fit in.
type Scaler interface {
	Transform(features []float64) ([]float64, error)
}

// Confidence is the largest entry of a class-probability vector.
func Confidence(proba []float64) float64 {
	best := 0.0
	for _, p := range proba {
		if p > best {
			best = p
		}
	}
	return best
}

func argmax(values []float64) int {
	best := 0
	for i := range values {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func validateTrainingSet(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	for _, row := range features {
		if len(row) != width {
			return errors.New("ragged feature matrix")
		}
	}
	for _, label := range labels {
		if label != 0 && label != 1 {
			return errors.New("labels must be 0 or 1")
		}
	}
	return nil
}
