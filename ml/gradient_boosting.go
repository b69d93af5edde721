package ml

import (
	"fmt"
	"math"
)

// GradientBoosting is a binary log-loss boosted ensemble of regression trees.
type GradientBoosting struct {
	NEstimators  int               `json:"n_estimators"`
	LearningRate float64           `json:"learning_rate"`
	MaxDepth     int               `json:"max_depth"`
	InitScore    float64           `json:"init_score"`
	Trees        []*RegressionTree `json:"trees"`
}

func NewGradientBoosting(nEstimators int, learningRate float64, maxDepth int) *GradientBoosting {
	return &GradientBoosting{
		NEstimators:  nEstimators,
		LearningRate: learningRate,
		MaxDepth:     maxDepth,
	}
}

func (gb *GradientBoosting) Fit(features [][]float64, labels []int) error {
	if err := validateTrainingSet(features, labels); err != nil {
		return err
	}
	if gb.NEstimators <= 0 {
		gb.NEstimators = 100
	}
	if gb.LearningRate <= 0 {
		gb.LearningRate = 0.1
	}
	if gb.MaxDepth <= 0 {
		gb.MaxDepth = 3
	}

	positives := 0.0
	for _, label := range labels {
		positives += float64(label)
	}
	prior := clip(positives/float64(len(labels)), 1e-6, 1-1e-6)
	gb.InitScore = math.Log(prior / (1 - prior))

	raw := make([]float64, len(features))
	for i := range raw {
		raw[i] = gb.InitScore
	}
	residuals := make([]float64, len(features))
	hessians := make([]float64, len(features))

	gb.Trees = make([]*RegressionTree, 0, gb.NEstimators)
	for m := 0; m < gb.NEstimators; m++ {
		for i := range raw {
			p := sigmoid(raw[i])
			residuals[i] = float64(labels[i]) - p
			hessians[i] = p * (1 - p)
		}
		tree := &RegressionTree{MaxDepth: gb.MaxDepth, MinSamplesLeaf: 1}
		if err := tree.Fit(features, residuals, hessians); err != nil {
			return err
		}
		for i, row := range features {
			step, err := tree.Predict(row)
			if err != nil {
				return err
			}
			raw[i] += gb.LearningRate * step
		}
		gb.Trees = append(gb.Trees, tree)
	}
	return nil
}

func (gb *GradientBoosting) Predict(features []float64) (int, error) {
	proba, err := gb.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

func (gb *GradientBoosting) PredictProba(features []float64) ([]float64, error) {
	if !gb.fitted() {
		return nil, ErrNotFitted
	}
	raw := gb.InitScore
	for _, tree := range gb.Trees {
		step, err := tree.Predict(features)
		if err != nil {
			return nil, err
		}
		raw += gb.LearningRate * step
	}
	p := sigmoid(raw)
	return []float64{1 - p, p}, nil
}

func (gb *GradientBoosting) fitted() bool {
	if len(gb.Trees) == 0 {
		return false
	}
	for _, tree := range gb.Trees {
		if tree == nil || len(tree.Nodes) == 0 {
			return false
		}
	}
	return true
}

func (gb *GradientBoosting) validate() error {
	if len(gb.Trees) == 0 {
		return ErrNotFitted
	}
	for i, tree := range gb.Trees {
		if tree == nil {
			return fmt.Errorf("tree %d: %w", i, ErrNotFitted)
		}
		if err := tree.validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clip(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
