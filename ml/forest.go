package ml

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

const KindRandomForestRegressor = "random_forest_regressor"

// ForestSpec is the serialized form of a fitted random forest regressor.
type ForestSpec struct {
	Kind      string     `json:"kind"`
	NFeatures int        `json:"n_features"`
	NOutputs  int        `json:"n_outputs"`
	Trees     []TreeSpec `json:"trees"`
}

type TreeSpec struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is one entry of a flat, pre-order tree. Children always sit after their parent.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	IsLeaf     bool      `json:"is_leaf"`
	Value      []float64 `json:"value,omitempty"`
}

// RegressionTree walks its nodes until it reaches a leaf.
type RegressionTree struct {
	nodes []TreeNode
}

func (t *RegressionTree) predict(features []float64) []float64 {
	idx := 0
	for {
		node := t.nodes[idx]
		if node.IsLeaf {
			return node.Value
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// RandomForest averages the leaf values of its trees.
type RandomForest struct {
	trees     []RegressionTree
	nFeatures int
	nOutputs  int
}

// NewRandomForest validates spec and returns a forest ready for prediction.
// A validated forest cannot loop or index out of range at predict time.
func NewRandomForest(spec ForestSpec) (*RandomForest, error) {
	if spec.Kind != KindRandomForestRegressor {
		return nil, fmt.Errorf("%w: unsupported model kind %q", ErrInvalidArtifact, spec.Kind)
	}
	if spec.NFeatures <= 0 || spec.NOutputs <= 0 {
		return nil, fmt.Errorf("%w: n_features=%d n_outputs=%d", ErrInvalidArtifact, spec.NFeatures, spec.NOutputs)
	}
	if len(spec.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrInvalidArtifact)
	}

	forest := &RandomForest{
		trees:     make([]RegressionTree, len(spec.Trees)),
		nFeatures: spec.NFeatures,
		nOutputs:  spec.NOutputs,
	}
	for i, tree := range spec.Trees {
		if err := validateTree(tree.Nodes, spec.NFeatures, spec.NOutputs); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrInvalidArtifact, i, err)
		}
		forest.trees[i] = RegressionTree{nodes: tree.Nodes}
	}
	return forest, nil
}

func validateTree(nodes []TreeNode, nFeatures, nOutputs int) error {
	if len(nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			if len(node.Value) != nOutputs {
				return fmt.Errorf("leaf %d has %d values, want %d", i, len(node.Value), nOutputs)
			}
			if !allFinite(node.Value) {
				return fmt.Errorf("leaf %d has non-finite values", i)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, node.FeatureIdx)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(nodes) {
				return fmt.Errorf("node %d has invalid child %d", i, child)
			}
		}
	}
	return nil
}

func (f *RandomForest) NumFeatures() int { return f.nFeatures }
func (f *RandomForest) NumOutputs() int  { return f.nOutputs }
func (f *RandomForest) NumTrees() int    { return len(f.trees) }

// Predict averages the outputs of every tree.
func (f *RandomForest) Predict(features []float64) ([]float64, error) {
	if len(features) != f.nFeatures {
		return nil, fmt.Errorf("%w: forest expects %d features, got %d", ErrFeatureMismatch, f.nFeatures, len(features))
	}
	sum := make([]float64, f.nOutputs)
	for i := range f.trees {
		floats.Add(sum, f.trees[i].predict(features))
	}
	floats.Scale(1/float64(len(f.trees)), sum)
	return sum, nil
}
