package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// kZeroThreshold matches LightGBM's zero test for missing_type "Zero".
const kZeroThreshold = 1e-35

// lgbmNode is a node of a LightGBM dump_model tree_structure. Leaves carry
// leaf_value and no split_feature.
type lgbmNode struct {
	SplitFeature *int            `json:"split_feature"`
	Threshold    json.RawMessage `json:"threshold"`
	DecisionType string          `json:"decision_type"`
	DefaultLeft  bool            `json:"default_left"`
	MissingType  string          `json:"missing_type"`
	LeftChild    *lgbmNode       `json:"left_child"`
	RightChild   *lgbmNode       `json:"right_child"`
	LeafValue    float64         `json:"leaf_value"`

	threshold float64
}

type lgbmDump struct {
	Name                string   `json:"name"`
	NumClass            int      `json:"num_class"`
	NumTreePerIteration int      `json:"num_tree_per_iteration"`
	MaxFeatureIdx       int      `json:"max_feature_idx"`
	Objective           string   `json:"objective"`
	FeatureNames        []string `json:"feature_names"`
	TreeInfo            []struct {
		TreeIndex     int       `json:"tree_index"`
		TreeStructure *lgbmNode `json:"tree_structure"`
	} `json:"tree_info"`
}

// TreeEnsemble evaluates a LightGBM model exported with Booster.dump_model.
// Predictions are raw scores, which is what a lambdarank model ranks by.
type TreeEnsemble struct {
	trees        []*lgbmNode
	numFeatures  int
	featureNames []string
	objective    string
}

// LoadTreeEnsemble reads a dump_model JSON file.
func LoadTreeEnsemble(path string) (*TreeEnsemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ranking model: %w", err)
	}
	return ParseTreeEnsemble(data)
}

// ParseTreeEnsemble decodes and validates a dump_model document.
func ParseTreeEnsemble(data []byte) (*TreeEnsemble, error) {
	var dump lgbmDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("parse ranking model: %w", err)
	}
	if dump.NumTreePerIteration > 1 || dump.NumClass > 1 {
		return nil, fmt.Errorf("ranking model must have a single output, got %d classes", dump.NumClass)
	}
	if len(dump.TreeInfo) == 0 {
		return nil, fmt.Errorf("ranking model has no trees")
	}

	e := &TreeEnsemble{
		numFeatures:  dump.MaxFeatureIdx + 1,
		featureNames: dump.FeatureNames,
		objective:    dump.Objective,
	}
	for i, info := range dump.TreeInfo {
		if info.TreeStructure == nil {
			return nil, fmt.Errorf("tree %d has no structure", i)
		}
		if err := prepareNode(info.TreeStructure, e.numFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		e.trees = append(e.trees, info.TreeStructure)
	}
	return e, nil
}

func prepareNode(n *lgbmNode, numFeatures int) error {
	if n.SplitFeature == nil {
		return nil
	}
	if n.DecisionType != "" && n.DecisionType != "<=" {
		return fmt.Errorf("unsupported decision type %q", n.DecisionType)
	}
	if *n.SplitFeature < 0 || *n.SplitFeature >= numFeatures {
		return fmt.Errorf("split feature %d out of range", *n.SplitFeature)
	}
	if err := json.Unmarshal(n.Threshold, &n.threshold); err != nil {
		return fmt.Errorf("numeric threshold expected: %w", err)
	}
	if n.LeftChild == nil || n.RightChild == nil {
		return fmt.Errorf("split on feature %d is missing a child", *n.SplitFeature)
	}
	if err := prepareNode(n.LeftChild, numFeatures); err != nil {
		return err
	}
	return prepareNode(n.RightChild, numFeatures)
}

// NumFeatures is the row width the model expects.
func (e *TreeEnsemble) NumFeatures() int { return e.numFeatures }

// FeatureNames returns the training column names when the dump carries them.
func (e *TreeEnsemble) FeatureNames() []string { return e.featureNames }

// Predict sums the leaf values of every tree for each row.
func (e *TreeEnsemble) Predict(_ context.Context, rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != e.numFeatures {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), e.numFeatures)
		}
		sum := 0.0
		for _, t := range e.trees {
			sum += t.eval(row)
		}
		out[i] = sum
	}
	return out, nil
}

func (n *lgbmNode) eval(row []float64) float64 {
	for n.SplitFeature != nil {
		n = n.next(row[*n.SplitFeature])
	}
	return n.LeafValue
}

func (n *lgbmNode) next(v float64) *lgbmNode {
	if math.IsNaN(v) && n.MissingType != "NaN" {
		v = 0
	}
	if (n.MissingType == "Zero" && math.Abs(v) <= kZeroThreshold) || (n.MissingType == "NaN" && math.IsNaN(v)) {
		if n.DefaultLeft {
			return n.LeftChild
		}
		return n.RightChild
	}
	if v <= n.threshold {
		return n.LeftChild
	}
	return n.RightChild
}
