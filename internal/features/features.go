// Package features builds live feature vectors and reconciles them against
// the column schemas the models were trained with.
package features

import (
	"encoding/json"
	"fmt"
	"os"

	"sitesight/internal/common/errors"
	"sitesight/internal/scoring"
)

// Schema is the ordered column list a model was trained on.
type Schema []string

// Vector is a sparse set of named live feature values.
type Vector map[string]float64

// NewSchema rejects empty schemas, blank columns and duplicates.
func NewSchema(columns []string) (Schema, error) {
	if len(columns) == 0 {
		return nil, errors.NewConfigurationError("feature schema has no columns")
	}
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c == "" {
			return nil, errors.NewConfigurationError(fmt.Sprintf("feature schema column %d is empty", i))
		}
		if seen[c] {
			return nil, errors.NewConfigurationError(fmt.Sprintf("feature schema lists %q twice", c))
		}
		seen[c] = true
	}
	out := make(Schema, len(columns))
	copy(out, columns)
	return out, nil
}

// LoadSchema reads a JSON array of column names.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("read feature schema %s: %v", path, err))
	}
	var columns []string
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("parse feature schema %s: %v", path, err))
	}
	return NewSchema(columns)
}

// Align projects v onto schema: columns missing from v become 0, columns not
// in schema are dropped, and the output follows schema order.
func Align(v Vector, schema Schema) []float64 {
	out := make([]float64, len(schema))
	for i, col := range schema {
		out[i] = v[col]
	}
	return out
}

// Vector turns an aligned row back into named values, so aligning the result
// again yields the same row.
func (s Schema) Vector(row []float64) Vector {
	v := make(Vector, len(s))
	for i, col := range s {
		if i < len(row) {
			v[col] = row[i]
		}
	}
	return v
}

// Ranking feature column names.
const (
	ColConnectivityScore = "ConnectivityScore"
	ColUpdateScore       = "UpdateScore"
	ColAlertScore        = "AlertScore"
	ColSecurityScore     = "SecurityScore"
	TypePrefix           = "Type_"
)

var rankingScoreColumns = map[scoring.Dimension]string{
	scoring.Connectivity: ColConnectivityScore,
	scoring.Update:       ColUpdateScore,
	scoring.Alerts:       ColAlertScore,
	scoring.Security:     ColSecurityScore,
}

// RankingVector builds a site's ranking features: the four dimension means
// and a Type_<t> flag for every resource type seen anywhere in the batch,
// set to 1 where the site has that type.
func RankingVector(means map[scoring.Dimension]float64, siteTypes, batchTypes []string) Vector {
	v := make(Vector, len(rankingScoreColumns)+len(batchTypes))
	for d, col := range rankingScoreColumns {
		v[col] = means[d]
	}
	for _, t := range batchTypes {
		v[TypePrefix+t] = 0
	}
	for _, t := range siteTypes {
		v[TypePrefix+t] = 1
	}
	return v
}

// RecommendationVector one-hot encodes a resource's raw statuses as
// <Dimension>_<Status> columns.
func RecommendationVector(statuses map[scoring.Dimension]string) Vector {
	v := make(Vector, len(statuses))
	for d, status := range statuses {
		if status == "" {
			continue
		}
		v[StatusColumn(d, status)] = 1
	}
	return v
}

// StatusColumn names the one-hot column for a dimension status.
func StatusColumn(d scoring.Dimension, status string) string {
	return string(d) + "_" + status
}
