package predictor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrArtifactsUnavailable is wrapped by every ArtifactError.
var ErrArtifactsUnavailable = errors.New("artifacts unavailable")

// ArtifactError disables prediction until the artifacts can be loaded.
type ArtifactError struct {
	Required []string
	Missing  []string
	Err      error
}

func (e *ArtifactError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("Model or scaler files not found. Please make sure %s exist.", quoteList(e.Required))
	}
	if e.Err != nil {
		return fmt.Sprintf("Model or scaler files could not be loaded: %v", e.Err)
	}
	return "Model or scaler files have not been loaded."
}

func (e *ArtifactError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrArtifactsUnavailable}
	}
	return []error{ErrArtifactsUnavailable, e.Err}
}

// PredictionError is any failure inside the scale/predict sequence.
type PredictionError struct {
	Stage string
	Err   error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " and " + quoted[1]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + ", and " + quoted[len(quoted)-1]
	}
}
