package ml

import (
	"errors"
	"fmt"
	"math"
)

// RegressionTree fits boosting residuals. Leaves hold a Newton step
// sum(residual) / sum(hessian) so it can serve log-loss boosting directly.
type RegressionTree struct {
	MaxDepth       int              `json:"max_depth"`
	MinSamplesLeaf int              `json:"min_samples_leaf"`
	Nodes          []RegressionNode `json:"nodes"`
}

type RegressionNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

func (rt *RegressionTree) Fit(features [][]float64, residuals, hessians []float64) error {
	if len(features) == 0 {
		return errors.New("features empty")
	}
	if len(features) != len(residuals) || len(residuals) != len(hessians) {
		return errors.New("features, residuals and hessians size mismatch")
	}
	if rt.MaxDepth <= 0 {
		rt.MaxDepth = 3
	}
	if rt.MinSamplesLeaf <= 0 {
		rt.MinSamplesLeaf = 1
	}
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	rt.Nodes = nil
	rt.grow(features, residuals, hessians, idx, 0)
	return nil
}

func (rt *RegressionTree) validate() error {
	if len(rt.Nodes) == 0 {
		return ErrNotFitted
	}
	for i, node := range rt.Nodes {
		if node.IsLeaf {
			continue
		}
		if err := checkChildren(i, node.LeftChild, node.RightChild, len(rt.Nodes)); err != nil {
			return err
		}
	}
	return nil
}

// checkChildren requires both children of node pos to come after it.
// Nodes are stored in growth order, so a backward index would be a cycle.
func checkChildren(pos, left, right, size int) error {
	for _, child := range []int{left, right} {
		if child <= pos || child >= size {
			return fmt.Errorf("node %d: child %d: %w", pos, child, errInvalidTree)
		}
	}
	return nil
}

func (rt *RegressionTree) Predict(features []float64) (float64, error) {
	if len(rt.Nodes) == 0 {
		return 0, ErrNotFitted
	}
	idx := 0
	for {
		node := rt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errFeatureIndex
		}
		next := node.RightChild
		if features[node.FeatureIdx] <= node.Threshold {
			next = node.LeftChild
		}
		if next <= idx || next >= len(rt.Nodes) {
			return 0, errInvalidTree
		}
		idx = next
	}
}

func (rt *RegressionTree) grow(features [][]float64, residuals, hessians []float64, idx []int, depth int) int {
	pos := len(rt.Nodes)
	rt.Nodes = append(rt.Nodes, RegressionNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      newtonStep(residuals, hessians, idx),
		IsLeaf:     true,
	})
	if depth >= rt.MaxDepth || len(idx) < 2*rt.MinSamplesLeaf {
		return pos
	}

	feature, threshold, ok := bestVarianceSplit(features, residuals, idx, rt.MinSamplesLeaf)
	if !ok {
		return pos
	}
	left, right := partition(features, idx, feature, threshold)
	if len(left) == 0 || len(right) == 0 {
		return pos
	}

	leftPos := rt.grow(features, residuals, hessians, left, depth+1)
	rightPos := rt.grow(features, residuals, hessians, right, depth+1)

	node := &rt.Nodes[pos]
	node.IsLeaf = false
	node.FeatureIdx = feature
	node.Threshold = threshold
	node.LeftChild = leftPos
	node.RightChild = rightPos
	return pos
}

// bestVarianceSplit minimises the summed squared error of both children.
func bestVarianceSplit(features [][]float64, targets []float64, idx []int, minLeaf int) (int, float64, bool) {
	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += targets[i]
		totalSq += targets[i] * targets[i]
	}
	n := float64(len(idx))
	parentSSE := totalSq - totalSum*totalSum/n

	bestFeature := -1
	bestThreshold := 0.0
	bestSSE := math.MaxFloat64

	sorted := make([]int, len(idx))
	for featureIdx := 0; featureIdx < len(features[0]); featureIdx++ {
		copy(sorted, idx)
		sortByFeature(features, sorted, featureIdx)

		var leftSum, leftSq float64
		for i := 0; i < len(sorted)-1; i++ {
			y := targets[sorted[i]]
			leftSum += y
			leftSq += y * y
			leftN := float64(i + 1)
			rightN := n - leftN
			if int(leftN) < minLeaf || int(rightN) < minLeaf {
				continue
			}
			current := features[sorted[i]][featureIdx]
			next := features[sorted[i+1]][featureIdx]
			if current == next {
				continue
			}
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/leftN) + (rightSq - rightSum*rightSum/rightN)
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = featureIdx
				bestThreshold = midpoint(current, next)
			}
		}
	}
	if bestFeature == -1 || bestSSE >= parentSSE {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func newtonStep(residuals, hessians []float64, idx []int) float64 {
	var num, den float64
	for _, i := range idx {
		num += residuals[i]
		den += hessians[i]
	}
	if den < 1e-12 {
		return 0
	}
	return num / den
}
