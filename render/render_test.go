package render

import (
	"bytes"
	"errors"
	"html/template"
	"strings"
	"testing"

	"healthpredict/ml"
	"healthpredict/predictor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "🚬 Smoker", Label(predictor.TargetSmoking, 1))
	assert.Equal(t, "✅ Non-Smoker", Label(predictor.TargetSmoking, 0))
	assert.Equal(t, "🍷 Drinker", Label(predictor.TargetDrinking, 1))
	assert.Equal(t, "✅ Non-Drinker", Label(predictor.TargetDrinking, 0))
	assert.Equal(t, "", Label(predictor.Target("sleep"), 1))
}

func TestConfidenceFormatting(t *testing.T) {
	assert.Equal(t, "Confidence: 0.87", NewFormatter("").Confidence(0.8749))
	assert.Equal(t, "Confidence: 1.00", NewFormatter("en").Confidence(1))
	assert.Equal(t, "Confidence: 0,50", NewFormatter("de").Confidence(0.5))
	assert.Equal(t, "en", NewFormatter("not a tag!").Language().String())
}

func TestPredictionErrorText(t *testing.T) {
	err := &predictor.PredictionError{Stage: "scaler", Err: errors.New("expected 4 features, got 3")}
	assert.Equal(t, "⚠️ Error during prediction: scaler: expected 4 features, got 3", PredictionError(err))
}

func sampleResult() *predictor.Result {
	return &predictor.Result{
		Input: ml.DefaultRow(),
		Smoking: predictor.Outcome{
			Target: predictor.TargetSmoking, Label: 1, Confidence: 0.87, Probabilities: []float64{0.13, 0.87},
		},
		Drinking: predictor.Outcome{
			Target: predictor.TargetDrinking, Label: 0, Confidence: 0.64, Probabilities: []float64{0.64, 0.36},
		},
	}
}

func TestRenderPageWithResult(t *testing.T) {
	renderer, err := NewRenderer(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderer.Render(&buf, renderer.NewPage(ml.DefaultRow(), sampleResult(), nil)))
	body := buf.String()

	for _, want := range []string{
		template.HTMLEscapeString(Title), SidebarHeader, ResultsHeader, Disclaimer,
		"🚬 Smoker", "✅ Non-Drinker", "Confidence: 0.87", "Confidence: 0.64",
		`type="range" id="age" name="age" min="10" max="100" step="1" value="30"`,
		`type="number" id="gamma_GTP" name="gamma_GTP" min="0.0" max="500.0" step="0.1" value="30.0"`,
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "artifact-error")
}

func TestRenderArtifactError(t *testing.T) {
	renderer, err := NewRenderer(nil)
	require.NoError(t, err)

	artifactErr := &predictor.ArtifactError{
		Required: []string{"rf_smoking_model.json", "gb_drinking_model.json", "scaler.json"},
		Missing:  []string{"scaler.json"},
	}
	page := renderer.NewPage(ml.DefaultRow(), nil, artifactErr)
	assert.False(t, page.Ready())

	var buf bytes.Buffer
	require.NoError(t, renderer.Render(&buf, page))
	body := buf.String()
	assert.Contains(t, body, "Model or scaler files not found.")
	assert.Contains(t, body, "&#39;scaler.json&#39;")
	assert.NotContains(t, body, ResultsHeader)
	assert.NotContains(t, body, `id="results"`)
}

func TestRenderPredictionError(t *testing.T) {
	renderer, err := NewRenderer(nil)
	require.NoError(t, err)

	page := renderer.NewPage(ml.DefaultRow(), nil, &predictor.PredictionError{Stage: "smoking model", Err: errors.New("boom")})
	var buf bytes.Buffer
	require.NoError(t, renderer.RenderResults(&buf, page))
	body := buf.String()
	assert.Contains(t, body, "⚠️ Error during prediction: smoking model: boom")
	assert.NotContains(t, body, Disclaimer)
	assert.False(t, strings.Contains(body, "<html"))
}
