package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// forestTree holds one fitted tree in scikit-learn's flat array layout.
// value is [node][output][class].
type forestTree struct {
	ChildrenLeft  []int         `json:"children_left"`
	ChildrenRight []int         `json:"children_right"`
	Feature       []int         `json:"feature"`
	Threshold     []float64     `json:"threshold"`
	Value         [][][]float64 `json:"value"`
}

type forestFile struct {
	Classes      []string `json:"classes"`
	NFeatures    int      `json:"n_features"`
	FeatureNames []string `json:"feature_names"`
	// OutputClasses lists the class values of each output. Outputs that only
	// ever saw one value during training have a single class.
	OutputClasses [][]int      `json:"output_classes"`
	Estimators    []forestTree `json:"estimators"`
}

// Forest is a multi-output random forest classifier whose outputs are the
// indicator columns of a LabelBinarizer.
type Forest struct {
	trees         []forestTree
	numFeatures   int
	featureNames  []string
	outputClasses [][]int
	binarizer     LabelBinarizer
}

// LoadForest reads an exported multi-output forest.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recommendation model: %w", err)
	}
	return ParseForest(data)
}

// ParseForest decodes and validates an exported forest document.
func ParseForest(data []byte) (*Forest, error) {
	var f forestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse recommendation model: %w", err)
	}
	if len(f.Classes) == 0 {
		return nil, fmt.Errorf("recommendation model has no classes")
	}
	if f.NFeatures <= 0 {
		return nil, fmt.Errorf("recommendation model has no features")
	}
	if len(f.Estimators) == 0 {
		return nil, fmt.Errorf("recommendation model has no estimators")
	}

	outputs := len(f.Classes)
	if f.OutputClasses == nil {
		f.OutputClasses = make([][]int, outputs)
		for k := range f.OutputClasses {
			f.OutputClasses[k] = []int{0, 1}
		}
	}
	if len(f.OutputClasses) != outputs {
		return nil, fmt.Errorf("output_classes has %d entries, want %d", len(f.OutputClasses), outputs)
	}

	for i, t := range f.Estimators {
		if err := validateTree(t, f.NFeatures, f.OutputClasses); err != nil {
			return nil, fmt.Errorf("estimator %d: %w", i, err)
		}
	}

	return &Forest{
		trees:         f.Estimators,
		numFeatures:   f.NFeatures,
		featureNames:  f.FeatureNames,
		outputClasses: f.OutputClasses,
		binarizer:     LabelBinarizer{Classes: f.Classes},
	}, nil
}

func validateTree(t forestTree, numFeatures int, outputClasses [][]int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == -1 {
			if right != -1 {
				return fmt.Errorf("node %d has only one child", i)
			}
		} else {
			// nodes are stored depth first, so children always follow their parent
			if left <= i || left >= n || right <= i || right >= n {
				return fmt.Errorf("node %d has children out of range", i)
			}
			if t.Feature[i] < 0 || t.Feature[i] >= numFeatures {
				return fmt.Errorf("node %d splits on feature %d out of range", i, t.Feature[i])
			}
		}
		if len(t.Value[i]) != len(outputClasses) {
			return fmt.Errorf("node %d has %d outputs, want %d", i, len(t.Value[i]), len(outputClasses))
		}
		for k, counts := range t.Value[i] {
			if len(counts) < len(outputClasses[k]) {
				return fmt.Errorf("node %d output %d has %d class values, want %d", i, k, len(counts), len(outputClasses[k]))
			}
		}
	}
	return nil
}

// NumFeatures is the row width the model expects.
func (f *Forest) NumFeatures() int { return f.numFeatures }

// FeatureNames returns the training column names when the export carries them.
func (f *Forest) FeatureNames() []string { return f.featureNames }

// Binarizer returns the label decoder fitted with the forest.
func (f *Forest) Binarizer() LabelBinarizer { return f.binarizer }

// PredictIndicators averages per-tree class probabilities for every output
// and picks the most probable class, the first one on ties.
func (f *Forest) PredictIndicators(rows [][]float64) ([][]int, error) {
	out := make([][]int, len(rows))
	for r, row := range rows {
		if len(row) != f.numFeatures {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", r, len(row), f.numFeatures)
		}

		proba := make([][]float64, len(f.outputClasses))
		for k, classes := range f.outputClasses {
			proba[k] = make([]float64, len(classes))
		}
		for _, t := range f.trees {
			leaf := t.leaf(row)
			for k := range proba {
				counts := t.Value[leaf][k]
				total := 0.0
				for c := range proba[k] {
					total += counts[c]
				}
				if total == 0 {
					continue
				}
				for c := range proba[k] {
					proba[k][c] += counts[c] / total
				}
			}
		}

		indicators := make([]int, len(f.outputClasses))
		for k, classes := range f.outputClasses {
			best := 0
			for c := 1; c < len(classes); c++ {
				if proba[k][c] > proba[k][best] {
					best = c
				}
			}
			indicators[k] = classes[best]
		}
		out[r] = indicators
	}
	return out, nil
}

// Predict returns the decoded label set per row.
func (f *Forest) Predict(_ context.Context, rows [][]float64) ([][]string, error) {
	indicators, err := f.PredictIndicators(rows)
	if err != nil {
		return nil, err
	}
	return f.binarizer.InverseTransform(indicators)
}

func (t forestTree) leaf(row []float64) int {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if row[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}
