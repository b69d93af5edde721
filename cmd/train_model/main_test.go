package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthpredict/db"
	"healthpredict/ml"
	"healthpredict/predictor"
	"healthpredict/predictor/predictortest"
)

func writePreparedCSV(t *testing.T, path string, rows int) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := csv.NewWriter(file)
	require.NoError(t, w.Write([]string{"age", "BMI", "gamma_GTP", "hemoglobin", "smoking", "drinking"}))
	data := predictortest.Dataset(rows, 7)
	for i, row := range data.Rows {
		require.NoError(t, w.Write([]string{
			strconv.FormatFloat(row.Age, 'f', -1, 64),
			strconv.FormatFloat(row.BMI, 'f', -1, 64),
			strconv.FormatFloat(row.GammaGTP, 'f', -1, 64),
			strconv.FormatFloat(row.Hemoglobin, 'f', -1, 64),
			strconv.Itoa(data.Smoking[i]),
			strconv.Itoa(data.Drinking[i]),
		}))
	}
	// out of range, dropped by the cleaner
	require.NoError(t, w.Write([]string{"130", "22", "30", "13", "0", "0"}))
	w.Flush()
	require.NoError(t, w.Error())
}

func testOptions(dir string) options {
	return options{
		DataPath:     filepath.Join(dir, "train.csv"),
		OutDir:       filepath.Join(dir, "artifacts"),
		DBPath:       filepath.Join(dir, "train.db"),
		TestRatio:    0.25,
		Seed:         42,
		ScalerKind:   string(ml.KindStandardScaler),
		SmokingModel: string(ml.KindRandomForest),
		Trees:        10,
		MaxDepth:     5,
		GBEstimators: 20,
		LearningRate: 0.1,
		GBDepth:      3,
	}
}

func TestRunWritesLoadableArtifacts(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	writePreparedCSV(t, opts.DataPath, 120)

	require.NoError(t, run(opts, predictor.DefaultConfig(), zap.NewNop()))

	cfg := predictor.DefaultConfig()
	cfg.Dir = opts.OutDir
	svc, err := predictor.NewService(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Load())

	require.NoError(t, db.InitDB(opts.DBPath))
	defer db.Close()
	logs, err := db.LoadTrainingLog(0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	targets := []string{logs[0].Target, logs[1].Target}
	assert.ElementsMatch(t, []string{"smoking", "drinking"}, targets)
	assert.Equal(t, 90, logs[0].DataPoints)
}

func TestRunAlternativeModels(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.DBPath = ""
	opts.ScalerKind = string(ml.KindMinMaxScaler)
	opts.SmokingModel = string(ml.KindDecisionTree)
	writePreparedCSV(t, opts.DataPath, 60)

	require.NoError(t, run(opts, predictor.DefaultConfig(), zap.NewNop()))

	model, err := ml.LoadClassifier(filepath.Join(opts.OutDir, "rf_smoking_model.json"))
	require.NoError(t, err)
	_, ok := model.(*ml.DecisionTree)
	assert.True(t, ok)
	_, err = ml.LoadScaler(filepath.Join(opts.OutDir, "scaler.json"))
	require.NoError(t, err)
}

func TestRunRejectsUnknownModel(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.SmokingModel = "svm"
	writePreparedCSV(t, opts.DataPath, 20)
	assert.Error(t, run(opts, predictor.DefaultConfig(), zap.NewNop()))
}
