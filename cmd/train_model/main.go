package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"healthpredict/db"
	"healthpredict/logging"
	"healthpredict/ml"
	"healthpredict/pipeline"
	"healthpredict/predictor"
)

type options struct {
	DataPath     string
	OutDir       string
	DBPath       string
	TestRatio    float64
	Seed         int64
	ScalerKind   string
	SmokingModel string
	Trees        int
	MaxDepth     int
	GBEstimators int
	LearningRate float64
	GBDepth      int
}

type trainedModel struct {
	name   string
	target predictor.Target
	file   string
	model  ml.Trainer
	labels func(ml.Dataset) []int
}

func main() {
	defaults := predictor.DefaultConfig()

	var opts options
	flag.StringVar(&opts.DataPath, "data", "", "training CSV (prepared or raw screening export)")
	flag.StringVar(&opts.OutDir, "out", ".", "directory the artifacts are written to")
	flag.StringVar(&opts.DBPath, "db", "healthpredict.db", "SQLite training log; empty disables")
	flag.Float64Var(&opts.TestRatio, "test_ratio", 0.2, "held-out fraction")
	flag.Int64Var(&opts.Seed, "seed", 42, "random seed for the split and the forest")
	flag.StringVar(&opts.ScalerKind, "scaler", string(ml.KindStandardScaler), "standard_scaler or minmax_scaler")
	flag.StringVar(&opts.SmokingModel, "smoking_model", string(ml.KindRandomForest), "random_forest or decision_tree")
	flag.IntVar(&opts.Trees, "trees", 100, "random forest size")
	flag.IntVar(&opts.MaxDepth, "max_depth", 10, "max depth of the smoking trees")
	flag.IntVar(&opts.GBEstimators, "gb_estimators", 100, "boosting rounds for the drinking model")
	flag.Float64Var(&opts.LearningRate, "learning_rate", 0.1, "boosting learning rate")
	flag.IntVar(&opts.GBDepth, "gb_depth", 3, "depth of the boosting trees")
	logLevel := flag.String("log_level", "info", "log level")
	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Level = *logLevel
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if opts.DataPath == "" {
		logger.Fatal("-data is required")
	}

	if err := run(opts, defaults, logger); err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}
}

func run(opts options, files predictor.Config, logger *zap.Logger) error {
	data, format, err := pipeline.LoadDataset(opts.DataPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", zap.String("path", opts.DataPath), zap.String("format", string(format)), zap.Int("rows", data.Len()))

	cleaner := pipeline.NewDataCleaner(logger)
	data, issues := cleaner.Clean(data)
	if len(issues) > 0 {
		logger.Warn("rows dropped during cleaning", zap.Int("issues", len(issues)), zap.Int("kept", data.Len()))
	}

	train, test, err := data.Split(opts.TestRatio, opts.Seed)
	if err != nil {
		return fmt.Errorf("split dataset: %w", err)
	}
	if train.Len() == 0 {
		return fmt.Errorf("no training rows after split")
	}

	trainX, err := ml.Matrix(train.Rows)
	if err != nil {
		return err
	}
	scaler, err := fitScaler(opts.ScalerKind, trainX)
	if err != nil {
		return err
	}
	scaledTrain, err := ml.TransformAll(scaler, trainX)
	if err != nil {
		return err
	}

	models := []*trainedModel{
		{
			name:   opts.SmokingModel,
			target: predictor.TargetSmoking,
			file:   files.SmokingFile,
			model:  smokingModel(opts),
			labels: func(d ml.Dataset) []int { return d.Smoking },
		},
		{
			name:   string(ml.KindGradientBoosting),
			target: predictor.TargetDrinking,
			file:   files.DrinkingFile,
			model:  ml.NewGradientBoosting(opts.GBEstimators, opts.LearningRate, opts.GBDepth),
			labels: func(d ml.Dataset) []int { return d.Drinking },
		},
	}
	if models[0].model == nil {
		return fmt.Errorf("unknown smoking model %q", opts.SmokingModel)
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := ml.SaveArtifact(filepath.Join(opts.OutDir, files.ScalerFile), scaler); err != nil {
		return fmt.Errorf("save scaler: %w", err)
	}

	var scaledTest [][]float64
	if test.Len() > 0 {
		testX, err := ml.Matrix(test.Rows)
		if err != nil {
			return err
		}
		if scaledTest, err = ml.TransformAll(scaler, testX); err != nil {
			return err
		}
	}

	var logs []db.TrainingLog
	for _, m := range models {
		start := time.Now()
		if err := m.model.Fit(scaledTrain, m.labels(train)); err != nil {
			return fmt.Errorf("fit %s model: %w", m.target, err)
		}

		var eval ml.Evaluation
		if len(scaledTest) > 0 {
			if eval, err = ml.Evaluate(m.model, scaledTest, m.labels(test)); err != nil {
				return fmt.Errorf("evaluate %s model: %w", m.target, err)
			}
		}
		logger.Info("model trained",
			zap.String("target", string(m.target)),
			zap.String("model", m.name),
			zap.Duration("took", time.Since(start)),
			zap.Float64("accuracy", eval.Accuracy),
			zap.Float64("precision", eval.Precision),
			zap.Float64("recall", eval.Recall),
			zap.Int("test_rows", eval.Samples),
		)

		path := filepath.Join(opts.OutDir, m.file)
		if err := ml.SaveArtifact(path, m.model); err != nil {
			return fmt.Errorf("save %s model: %w", m.target, err)
		}
		logs = append(logs, db.TrainingLog{
			ModelName:  m.name,
			Target:     string(m.target),
			Artifact:   path,
			Accuracy:   eval.Accuracy,
			Precision:  eval.Precision,
			Recall:     eval.Recall,
			TrainedAt:  time.Now().UTC(),
			DataPoints: train.Len(),
		})
	}

	logger.Info("artifacts written", zap.String("dir", opts.OutDir))

	if opts.DBPath == "" {
		return nil
	}
	if err := db.InitDB(opts.DBPath); err != nil {
		return fmt.Errorf("open training log: %w", err)
	}
	defer db.Close()
	for _, entry := range logs {
		if err := db.SaveTrainingLog(entry); err != nil {
			return fmt.Errorf("record training run: %w", err)
		}
	}
	return nil
}

func fitScaler(kind string, features [][]float64) (ml.Scaler, error) {
	switch ml.ArtifactKind(kind) {
	case ml.KindStandardScaler:
		scaler := &ml.StandardScaler{}
		return scaler, scaler.Fit(features)
	case ml.KindMinMaxScaler:
		scaler := &ml.MinMaxScaler{}
		return scaler, scaler.Fit(features)
	default:
		return nil, fmt.Errorf("unknown scaler %q", kind)
	}
}

func smokingModel(opts options) ml.Trainer {
	switch ml.ArtifactKind(opts.SmokingModel) {
	case ml.KindRandomForest:
		return ml.NewRandomForest(opts.Trees, opts.MaxDepth, opts.Seed)
	case ml.KindDecisionTree:
		return ml.NewDecisionTree(opts.MaxDepth)
	default:
		return nil
	}
}
