package predictor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"healthpredict/ml"
	"healthpredict/pipeline"
	"healthpredict/predictor/predictortest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, dir string, source DrinkingSource) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.DrinkingSource = source
	svc, err := NewService(cfg, nil)
	require.NoError(t, err)
	return svc
}

func boundaryRows() []ml.FeatureRow {
	var rows []ml.FeatureRow
	for _, field := range ml.InputSchema() {
		for _, value := range []float64{field.Min, field.Max} {
			vector := ml.FeatureVector(ml.DefaultRow())
			for i, name := range ml.FeatureNames() {
				if name == field.Name {
					vector[i] = value
				}
			}
			row, _ := ml.RowFromVector(vector)
			rows = append(rows, row)
		}
	}
	return rows
}

func assertOutcome(t *testing.T, outcome Outcome) {
	t.Helper()
	assert.Contains(t, []int{0, 1}, outcome.Label)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.5)
	assert.LessOrEqual(t, outcome.Confidence, 1.0)
	require.Len(t, outcome.Probabilities, 2)
	assert.InDelta(t, 1.0, outcome.Probabilities[0]+outcome.Probabilities[1], 1e-9)
}

func TestMissingArtifactDisablesPrediction(t *testing.T) {
	for _, name := range []string{"rf_smoking_model.json", "gb_drinking_model.json", "scaler.json"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			predictortest.WriteArtifacts(t, dir)
			require.NoError(t, os.Remove(filepath.Join(dir, name)))

			svc := newTestService(t, dir, DrinkingFromArtifact)
			err := svc.Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrArtifactsUnavailable))

			var artifactErr *ArtifactError
			require.True(t, errors.As(err, &artifactErr))
			assert.Equal(t, []string{name}, artifactErr.Missing)
			assert.Contains(t, err.Error(), "'rf_smoking_model.json', 'gb_drinking_model.json', and 'scaler.json'")

			assert.False(t, svc.Ready())
			_, err = svc.Predict(context.Background(), ml.DefaultRow())
			assert.True(t, errors.Is(err, ErrArtifactsUnavailable))

			status := svc.Status()
			assert.False(t, status.Ready)
			assert.Equal(t, []string{name}, status.Missing)
		})
	}
}

func TestPredictBeforeLoad(t *testing.T) {
	svc := newTestService(t, t.TempDir(), DrinkingFromArtifact)
	_, err := svc.Predict(context.Background(), ml.DefaultRow())
	assert.True(t, errors.Is(err, ErrArtifactsUnavailable))
}

func TestCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scaler.json"), []byte("{not json"), 0o644))

	svc := newTestService(t, dir, DrinkingFromArtifact)
	err := svc.Load()
	require.Error(t, err)
	var artifactErr *ArtifactError
	require.True(t, errors.As(err, &artifactErr))
	assert.Empty(t, artifactErr.Missing)
	assert.Error(t, artifactErr.Err)
}

func TestPredictBoundaryInputs(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)

	for _, source := range []DrinkingSource{DrinkingFromArtifact, DrinkingInline} {
		t.Run(string(source), func(t *testing.T) {
			svc := newTestService(t, dir, source)
			require.NoError(t, svc.Load())
			for _, row := range boundaryRows() {
				result, err := svc.Predict(context.Background(), row)
				require.NoError(t, err, "%+v", row)
				assert.Equal(t, row, result.Input)
				assertOutcome(t, result.Smoking)
				assertOutcome(t, result.Drinking)
			}
		})
	}
}

func TestPredictDefaultsReproducible(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)

	first := newTestService(t, dir, DrinkingFromArtifact)
	require.NoError(t, first.Load())
	second := newTestService(t, dir, DrinkingFromArtifact)
	require.NoError(t, second.Load())

	a, err := first.Predict(context.Background(), ml.DefaultRow())
	require.NoError(t, err)
	b, err := second.Predict(context.Background(), ml.DefaultRow())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	again, err := first.Predict(context.Background(), ml.DefaultRow())
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestInlineDrinkingFallback(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "gb_drinking_model.json")))

	svc := newTestService(t, dir, DrinkingInline)
	require.NoError(t, svc.Load())

	row := ml.FeatureRow{Age: 40, BMI: 30.5, GammaGTP: 120, Hemoglobin: 14.5}
	for i := 0; i < 3; i++ {
		result, err := svc.Predict(context.Background(), row)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Drinking.Label)
		assert.GreaterOrEqual(t, result.Drinking.Probabilities[1], 0.5)
	}
	assert.Equal(t, 1, svc.Loader().FallbackFits())
	assert.Equal(t, DrinkingInline, svc.Status().DrinkingSource)
}

func TestInlineFallbackReusedAcrossReloads(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)
	svc := newTestService(t, dir, DrinkingInline)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Load())
	}
	assert.Equal(t, 1, svc.Loader().FallbackFits())
	assert.Equal(t, uint64(3), svc.Status().Generation)

	data := predictortest.Dataset(50, 7)
	features, err := ml.Matrix(data.Rows)
	require.NoError(t, err)
	scaler := &ml.MinMaxScaler{}
	require.NoError(t, scaler.Fit(features))
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, "scaler.json"), scaler))

	require.NoError(t, svc.Load())
	assert.Equal(t, 2, svc.Loader().FallbackFits())
}

func TestInlineFallbackDeterministic(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)

	row := ml.FeatureRow{Age: 52, BMI: 26, GammaGTP: 75, Hemoglobin: 14}
	var results []Result
	for i := 0; i < 2; i++ {
		svc := newTestService(t, dir, DrinkingInline)
		require.NoError(t, svc.Load())
		result, err := svc.Predict(context.Background(), row)
		require.NoError(t, err)
		results = append(results, result)
	}
	assert.Equal(t, results[0].Drinking, results[1].Drinking)
}

func TestPredictInvalidInput(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)
	svc := newTestService(t, dir, DrinkingFromArtifact)
	require.NoError(t, svc.Load())

	_, err := svc.Predict(context.Background(), ml.FeatureRow{Age: 101, BMI: 22, GammaGTP: 30, Hemoglobin: 13})
	assert.True(t, errors.Is(err, pipeline.ErrInvalidInput))
}

type failingClassifier struct{}

func (failingClassifier) Predict([]float64) (int, error) { return 0, errors.New("shape mismatch") }
func (failingClassifier) PredictProba([]float64) ([]float64, error) {
	return nil, errors.New("shape mismatch")
}

type panickingScaler struct{}

func (panickingScaler) Transform([]float64) ([]float64, error) { panic("boom") }

func TestPredictionErrors(t *testing.T) {
	scaler := &ml.StandardScaler{Mean: make([]float64, 4), Scale: []float64{1, 1, 1, 1}}

	_, err := predictSet(&ArtifactSet{Scaler: scaler, Smoking: failingClassifier{}, Drinking: failingClassifier{}}, ml.DefaultRow())
	var predictionErr *PredictionError
	require.True(t, errors.As(err, &predictionErr))
	assert.Equal(t, "smoking model", predictionErr.Stage)
	assert.Contains(t, err.Error(), "shape mismatch")

	_, err = predictSet(&ArtifactSet{Scaler: panickingScaler{}}, ml.DefaultRow())
	require.True(t, errors.As(err, &predictionErr))
	assert.Contains(t, err.Error(), "boom")
}

func TestReloadBumpsGeneration(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)
	svc := newTestService(t, dir, DrinkingFromArtifact)
	require.NoError(t, svc.Load())
	first := svc.Status().Generation
	require.NoError(t, svc.Load())
	assert.Greater(t, svc.Status().Generation, first)
}

func TestWatchReloadsWhenArtifactAppears(t *testing.T) {
	dir := t.TempDir()
	predictortest.WriteArtifacts(t, dir)
	drinking := filepath.Join(dir, "gb_drinking_model.json")
	payload, err := os.ReadFile(drinking)
	require.NoError(t, err)
	require.NoError(t, os.Remove(drinking))

	svc := newTestService(t, dir, DrinkingFromArtifact)
	require.Error(t, svc.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Watch(ctx, 20*time.Millisecond))

	require.NoError(t, os.WriteFile(drinking, payload, 0o644))
	assert.Eventually(t, svc.Ready, 5*time.Second, 20*time.Millisecond)
}

func TestQuoteList(t *testing.T) {
	assert.Equal(t, "'a'", quoteList([]string{"a"}))
	assert.Equal(t, "'a' and 'b'", quoteList([]string{"a", "b"}))
	assert.Equal(t, "'a', 'b', and 'c'", quoteList([]string{"a", "b", "c"}))
}
