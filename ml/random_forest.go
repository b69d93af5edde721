package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// RandomForest averages the class probabilities of independently grown trees.
type RandomForest struct {
	NEstimators int             `json:"n_estimators"`
	MaxDepth    int             `json:"max_depth"`
	MaxFeatures int             `json:"max_features"`
	Bootstrap   bool            `json:"bootstrap"`
	Seed        int64           `json:"seed"`
	Trees       []*DecisionTree `json:"trees"`
}

func NewRandomForest(nEstimators, maxDepth int, seed int64) *RandomForest {
	return &RandomForest{
		NEstimators: nEstimators,
		MaxDepth:    maxDepth,
		Bootstrap:   true,
		Seed:        seed,
	}
}

func (rf *RandomForest) Fit(features [][]float64, labels []int) error {
	if err := validateTrainingSet(features, labels); err != nil {
		return err
	}
	if rf.NEstimators <= 0 {
		rf.NEstimators = 100
	}
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(len(features[0]))))))
	}

	rng := rand.New(rand.NewSource(rf.Seed))
	trees := make([]*DecisionTree, 0, rf.NEstimators)
	for t := 0; t < rf.NEstimators; t++ {
		sampleX, sampleY := features, labels
		if rf.Bootstrap {
			sampleX, sampleY = bootstrapSample(rng, features, labels)
		}
		tree := &DecisionTree{
			MaxDepth:        rf.MaxDepth,
			MinSamplesSplit: 2,
			MaxFeatures:     maxFeatures,
			rng:             rng,
		}
		if err := tree.Fit(sampleX, sampleY); err != nil {
			return err
		}
		tree.rng = nil
		trees = append(trees, tree)
	}
	rf.Trees = trees
	return nil
}

func (rf *RandomForest) Predict(features []float64) (int, error) {
	proba, err := rf.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if !rf.fitted() {
		return nil, ErrNotFitted
	}
	sum := make([]float64, 2)
	for _, tree := range rf.Trees {
		proba, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		floats.Add(sum, proba)
	}
	floats.Scale(1/float64(len(rf.Trees)), sum)
	return sum, nil
}

func (rf *RandomForest) fitted() bool {
	if len(rf.Trees) == 0 {
		return false
	}
	for _, tree := range rf.Trees {
		if tree == nil || !tree.fitted() {
			return false
		}
	}
	return true
}

func (rf *RandomForest) validate() error {
	if len(rf.Trees) == 0 {
		return ErrNotFitted
	}
	for i, tree := range rf.Trees {
		if tree == nil {
			return fmt.Errorf("tree %d: %w", i, ErrNotFitted)
		}
		if err := tree.validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func bootstrapSample(rng *rand.Rand, features [][]float64, labels []int) ([][]float64, []int) {
	n := len(features)
	sampleX := make([][]float64, n)
	sampleY := make([]int, n)
	for i := 0; i < n; i++ {
		j := rng.Intn(n)
		sampleX[i] = features[j]
		sampleY[i] = labels[j]
	}
	return sampleX, sampleY
}
