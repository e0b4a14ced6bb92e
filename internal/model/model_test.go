package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	commonhttp "sitesight/internal/common/http"
	"sitesight/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rankingDump = `{
  "name": "tree",
  "version": "v4",
  "num_class": 1,
  "num_tree_per_iteration": 1,
  "max_feature_idx": 1,
  "objective": "lambdarank",
  "feature_names": ["ConnectivityScore", "Type_VM"],
  "tree_info": [
    {"tree_index": 0, "tree_structure": {
      "split_index": 0, "split_feature": 0, "threshold": 0.5, "decision_type": "<=",
      "default_left": true, "missing_type": "None",
      "left_child": {"leaf_index": 0, "leaf_value": -1.0},
      "right_child": {"leaf_index": 1, "leaf_value": 1.0}
    }},
    {"tree_index": 1, "tree_structure": {
      "split_index": 0, "split_feature": 1, "threshold": 0.25, "decision_type": "<=",
      "default_left": true, "missing_type": "NaN",
      "left_child": {"leaf_index": 0, "leaf_value": 0.5},
      "right_child": {"leaf_index": 1, "leaf_value": -0.5}
    }},
    {"tree_index": 2, "tree_structure": {"leaf_value": 0.25}}
  ]
}`

const recommendationForest = `{
  "classes": ["Check patch compliance", "Verify DNS resolution"],
  "n_features": 2,
  "feature_names": ["Security_NonCompliant", "Connectivity_NeedsAttention"],
  "estimators": [
    {
      "children_left":  [1, -1, -1],
      "children_right": [2, -1, -1],
      "feature":        [0, -2, -2],
      "threshold":      [0.5, -2, -2],
      "value": [
        [[2, 3], [3, 2]],
        [[3, 0], [0, 3]],
        [[0, 2], [2, 0]]
      ]
    },
    {
      "children_left":  [1, -1, -1],
      "children_right": [2, -1, -1],
      "feature":        [1, -2, -2],
      "threshold":      [0.5, -2, -2],
      "value": [
        [[0.5, 0.5], [0.5, 0.5]],
        [[0.8, 0.2], [1.0, 0.0]],
        [[0.9, 0.1], [0.0, 1.0]]
      ]
    }
  ]
}`

func TestTreeEnsemble_Predict(t *testing.T) {
	e, err := ParseTreeEnsemble([]byte(rankingDump))
	require.NoError(t, err)
	assert.Equal(t, 2, e.NumFeatures())
	assert.Equal(t, []string{"ConnectivityScore", "Type_VM"}, e.FeatureNames())

	scores, err := e.Predict(context.Background(), [][]float64{
		{1, 0},
		{0, 1},
		{0.5, math.NaN()},
	})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.75, -1.25, -0.25}, scores, 1e-12)

	_, err = e.Predict(context.Background(), [][]float64{{1}})
	assert.Error(t, err)
}

func TestTreeEnsemble_MissingZero(t *testing.T) {
	feature := 0
	n := &lgbmNode{
		SplitFeature: &feature,
		MissingType:  "Zero",
		DefaultLeft:  false,
		threshold:    0.5,
		LeftChild:    &lgbmNode{LeafValue: 1},
		RightChild:   &lgbmNode{LeafValue: 2},
	}
	// zero routes by default_left even though 0 <= threshold
	assert.Equal(t, 2.0, n.eval([]float64{0}))
	assert.Equal(t, 1.0, n.eval([]float64{0.3}))
	assert.Equal(t, 2.0, n.eval([]float64{math.NaN()}))
}

func TestParseTreeEnsemble_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"no trees", `{"max_feature_idx": 0, "tree_info": []}`},
		{"multiclass", `{"num_class": 3, "num_tree_per_iteration": 3, "max_feature_idx": 0, "tree_info": [{"tree_structure": {"leaf_value": 1}}]}`},
		{"categorical split", `{"max_feature_idx": 0, "tree_info": [{"tree_structure": {"split_feature": 0, "threshold": "1||2", "decision_type": "==",
			"left_child": {"leaf_value": 1}, "right_child": {"leaf_value": 0}}}]}`},
		{"feature out of range", `{"max_feature_idx": 0, "tree_info": [{"tree_structure": {"split_feature": 3, "threshold": 1, "decision_type": "<=",
			"left_child": {"leaf_value": 1}, "right_child": {"leaf_value": 0}}}]}`},
		{"missing child", `{"max_feature_idx": 0, "tree_info": [{"tree_structure": {"split_feature": 0, "threshold": 1, "left_child": {"leaf_value": 1}}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTreeEnsemble([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestForest_Predict(t *testing.T) {
	f, err := ParseForest([]byte(recommendationForest))
	require.NoError(t, err)

	indicators, err := f.PredictIndicators([][]float64{
		{1, 0},
		{1, 1},
		{0, 1},
		{0, 0},
	})
	require.NoError(t, err)
	// {1,1} and {0,0} tie on the second output; ties resolve to "off"
	assert.Equal(t, [][]int{{1, 0}, {1, 0}, {0, 1}, {0, 0}}, indicators)

	labels, err := f.Predict(context.Background(), [][]float64{{0, 1}, {1, 0}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Verify DNS resolution"}, {"Check patch compliance"}, {}}, labels)
}

func TestForest_SingleClassOutput(t *testing.T) {
	doc := `{
	  "classes": ["No action required", "Run vulnerability scan"],
	  "n_features": 1,
	  "output_classes": [[1], [0, 1]],
	  "estimators": [{
	    "children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2],
	    "value": [[[4, 0], [1, 3]]]
	  }]
	}`
	f, err := ParseForest([]byte(doc))
	require.NoError(t, err)

	labels, err := f.Predict(context.Background(), [][]float64{{0}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"No action required", "Run vulnerability scan"}}, labels)
}

func TestParseForest_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no classes", `{"n_features": 1, "estimators": [{}]}`},
		{"no estimators", `{"classes": ["a"], "n_features": 1}`},
		{"ragged arrays", `{"classes": ["a"], "n_features": 1, "estimators": [{"children_left": [-1, -1], "children_right": [-1], "feature": [0], "threshold": [0], "value": [[[1,0]]]}]}`},
		{"backwards child", `{"classes": ["a"], "n_features": 1, "estimators": [{"children_left": [0, -1, -1], "children_right": [2, -1, -1], "feature": [0, -2, -2], "threshold": [0.5, 0, 0], "value": [[[1,0]],[[1,0]],[[1,0]]]}]}`},
		{"wrong output count", `{"classes": ["a", "b"], "n_features": 1, "estimators": [{"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [[[1,0]]]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseForest([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLabelBinarizer_InverseTransform(t *testing.T) {
	b := LabelBinarizer{Classes: []string{"a", "b", "c"}}

	labels, err := b.InverseTransform([][]int{{1, 0, 1}, {0, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "c"}, {}}, labels)

	_, err = b.InverseTransform([][]int{{1, 0}})
	assert.Error(t, err)
}

func TestNopClassifier(t *testing.T) {
	labels, err := NopClassifier{}.Predict(context.Background(), [][]float64{{1}, {0}})
	require.NoError(t, err)
	assert.Len(t, labels, 2)
	assert.Empty(t, labels[0])
}

func TestRemoteRanker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		scores := make([]float64, len(req.Instances))
		for i, row := range req.Instances {
			scores[i] = row[0] * 2
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"predictions": scores})
	}))
	defer server.Close()

	r := NewRemoteRanker(commonhttp.NewClient(time.Second), server.URL)
	scores, err := r.Predict(context.Background(), [][]float64{{0.5}, {1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, scores)
}

func TestRemoteClassifier_LengthMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions": [["Run vulnerability scan"]]}`))
	}))
	defer server.Close()

	c := NewRemoteClassifier(commonhttp.NewClient(time.Second), server.URL)
	_, err := c.Predict(context.Background(), [][]float64{{1}, {0}})
	assert.Error(t, err)
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Local(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ModelsConfig{
		Backend: config.BackendLocal,
		Ranking: config.ModelArtifactConfig{
			Enabled:    true,
			ModelPath:  writeFile(t, dir, "ranking_model.json", rankingDump),
			SchemaPath: writeFile(t, dir, "ranking_features.json", `["ConnectivityScore","Type_VM"]`),
		},
		Recommendation: config.ModelArtifactConfig{
			Enabled:    true,
			ModelPath:  writeFile(t, dir, "recommendation_model.json", recommendationForest),
			SchemaPath: writeFile(t, dir, "recommendation_features.json", `["Security_NonCompliant","Connectivity_NeedsAttention"]`),
		},
	}

	b, err := Load(cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &TreeEnsemble{}, b.Ranker)
	assert.IsType(t, &Forest{}, b.Classifier)
	assert.Len(t, b.RecommendationSchema, 2)
}

func TestLoad_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ModelsConfig{
		Backend: config.BackendLocal,
		Ranking: config.ModelArtifactConfig{
			ModelPath:  writeFile(t, dir, "ranking_model.json", rankingDump),
			SchemaPath: writeFile(t, dir, "ranking_features.json", `["Type_VM","ConnectivityScore"]`),
		},
	}

	_, err := Load(cfg, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigurationInvalid))
}

func TestLoad_RecommendationDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ModelsConfig{
		Backend: config.BackendLocal,
		Ranking: config.ModelArtifactConfig{
			ModelPath:  writeFile(t, dir, "ranking_model.json", rankingDump),
			SchemaPath: writeFile(t, dir, "ranking_features.json", `["ConnectivityScore","Type_VM"]`),
		},
	}

	b, err := Load(cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, NopClassifier{}, b.Classifier)
}

func TestLoad_RemoteRejectsBadEndpoint(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ModelsConfig{
		Backend: config.BackendRemote,
		Ranking: config.ModelArtifactConfig{
			Endpoint:   "models:8501",
			SchemaPath: writeFile(t, dir, "ranking_features.json", `["ConnectivityScore"]`),
		},
	}

	_, err := Load(cfg, logger.NewTestLogger(t))
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigurationInvalid))
}
