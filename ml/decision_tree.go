package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// DecisionTree is a binary CART classifier with class-frequency leaves.
type DecisionTree struct {
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	MaxFeatures     int        `json:"max_features"`
	Nodes           []TreeNode `json:"nodes"`

	rng *rand.Rand
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	ClassLabel int       `json:"class_label"`
	Proba      []float64 `json:"proba"`
	IsLeaf     bool      `json:"is_leaf"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesSplit: 2}
}

func (dt *DecisionTree) Fit(features [][]float64, labels []int) error {
	if err := validateTrainingSet(features, labels); err != nil {
		return err
	}
	if dt.MaxDepth <= 0 {
		dt.MaxDepth = 3
	}
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = 2
	}

	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	dt.Nodes = nil
	dt.grow(features, labels, idx, 0)
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (int, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, err
	}
	return leaf.ClassLabel, nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), leaf.Proba...), nil
}

func (dt *DecisionTree) fitted() bool {
	return len(dt.Nodes) > 0
}

// validate checks that every split points forward to a node inside the tree,
// so traversal always ends at a leaf.
func (dt *DecisionTree) validate() error {
	if !dt.fitted() {
		return ErrNotFitted
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if len(node.Proba) != 2 {
				return fmt.Errorf("node %d: %w", i, errInvalidTree)
			}
			continue
		}
		if err := checkChildren(i, node.LeftChild, node.RightChild, len(dt.Nodes)); err != nil {
			return err
		}
	}
	return nil
}

func (dt *DecisionTree) leaf(features []float64) (*TreeNode, error) {
	if !dt.fitted() {
		return nil, ErrNotFitted
	}
	idx := 0
	for {
		node := &dt.Nodes[idx]
		if node.IsLeaf {
			if len(node.Proba) != 2 {
				return nil, errInvalidTree
			}
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errFeatureIndex
		}
		next := node.RightChild
		if features[node.FeatureIdx] <= node.Threshold {
			next = node.LeftChild
		}
		if next <= idx || next >= len(dt.Nodes) {
			return nil, errInvalidTree
		}
		idx = next
	}
}

// grow appends the subtree for idx and returns the position of its root.
func (dt *DecisionTree) grow(features [][]float64, labels []int, idx []int, depth int) int {
	counts := classCounts(labels, idx)
	pos := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, leafNode(counts))

	if depth >= dt.MaxDepth || len(idx) < dt.MinSamplesSplit || counts[0] == 0 || counts[1] == 0 {
		return pos
	}

	order, need := dt.candidateFeatures(len(features[0]))
	feature, threshold, ok := bestGiniSplit(features, labels, idx, order, need)
	if !ok {
		return pos
	}
	left, right := partition(features, idx, feature, threshold)
	if len(left) == 0 || len(right) == 0 {
		return pos
	}

	leftPos := dt.grow(features, labels, left, depth+1)
	rightPos := dt.grow(features, labels, right, depth+1)

	node := &dt.Nodes[pos]
	node.IsLeaf = false
	node.FeatureIdx = feature
	node.Threshold = threshold
	node.LeftChild = leftPos
	node.RightChild = rightPos
	return pos
}

// candidateFeatures returns the visiting order and how many features must be
// examined before an already found split is accepted.
func (dt *DecisionTree) candidateFeatures(width int) ([]int, int) {
	if dt.rng == nil || dt.MaxFeatures <= 0 || dt.MaxFeatures >= width {
		order := make([]int, width)
		for i := range order {
			order[i] = i
		}
		return order, width
	}
	return dt.rng.Perm(width), dt.MaxFeatures
}

func bestGiniSplit(features [][]float64, labels []int, idx []int, order []int, need int) (int, float64, bool) {
	total := classCounts(labels, idx)
	n := float64(len(idx))
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	sorted := make([]int, len(idx))
	for visited, featureIdx := range order {
		if visited >= need && bestFeature != -1 {
			break
		}
		copy(sorted, idx)
		sortByFeature(features, sorted, featureIdx)

		var left [2]float64
		for i := 0; i < len(sorted)-1; i++ {
			left[labels[sorted[i]]]++
			current := features[sorted[i]][featureIdx]
			next := features[sorted[i+1]][featureIdx]
			if current == next {
				continue
			}
			right := [2]float64{total[0] - left[0], total[1] - left[1]}
			leftWeight := float64(i + 1)
			rightWeight := n - leftWeight
			impurity := (leftWeight/n)*gini(left, leftWeight) + (rightWeight/n)*gini(right, rightWeight)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = midpoint(current, next)
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func partition(features [][]float64, idx []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func sortByFeature(features [][]float64, idx []int, featureIdx int) {
	sort.SliceStable(idx, func(a, b int) bool {
		return features[idx[a]][featureIdx] < features[idx[b]][featureIdx]
	})
}

func midpoint(a, b float64) float64 {
	mid := a + (b-a)/2
	if mid >= b {
		return a
	}
	return mid
}

func gini(counts [2]float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := count / total
		impurity -= prob * prob
	}
	return impurity
}

func classCounts(labels []int, idx []int) [2]float64 {
	var counts [2]float64
	for _, i := range idx {
		counts[labels[i]]++
	}
	return counts
}

func leafNode(counts [2]float64) TreeNode {
	total := counts[0] + counts[1]
	proba := []float64{0.5, 0.5}
	if total > 0 {
		proba = []float64{counts[0] / total, counts[1] / total}
	}
	label := 0
	if counts[1] > counts[0] {
		label = 1
	}
	return TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		ClassLabel: label,
		Proba:      proba,
		IsLeaf:     true,
	}
}
