// Package scoring turns categorical status strings into weighted health scores.
package scoring

import (
	"fmt"
	"math"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/common/metrics"
)

// Dimension is one of the four telemetry axes.
type Dimension string

const (
	Connectivity Dimension = "Connectivity"
	Update       Dimension = "Update"
	Alerts       Dimension = "Alerts"
	Security     Dimension = "Security"
)

// Dimensions lists every dimension in reporting order.
var Dimensions = []Dimension{Connectivity, Update, Alerts, Security}

const weightTolerance = 1e-9

// Weights maps each dimension to its share of the composite score.
type Weights map[Dimension]float64

// NewWeights validates that every dimension has a weight in [0,1] and that
// the weights sum to 1.
func NewWeights(w map[Dimension]float64) (Weights, error) {
	sum := 0.0
	out := make(Weights, len(Dimensions))
	for _, d := range Dimensions {
		v, ok := w[d]
		if !ok {
			return nil, errors.NewConfigurationError(fmt.Sprintf("missing weight for %s", d))
		}
		if v < 0 || v > 1 || math.IsNaN(v) {
			return nil, errors.NewConfigurationError(fmt.Sprintf("weight for %s must be in [0,1], got %v", d, v))
		}
		out[d] = v
		sum += v
	}
	if len(w) != len(Dimensions) {
		return nil, errors.NewConfigurationError(fmt.Sprintf("weights name %d dimensions, want %d", len(w), len(Dimensions)))
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, errors.NewConfigurationError(fmt.Sprintf("weights must sum to 1.0, got %v", sum))
	}
	return out, nil
}

// WeightsFromConfig builds Weights from the scoring.weights section.
func WeightsFromConfig(cfg config.DimensionWeights) (Weights, error) {
	return NewWeights(map[Dimension]float64{
		Connectivity: cfg.Connectivity,
		Update:       cfg.Update,
		Alerts:       cfg.Alerts,
		Security:     cfg.Security,
	})
}

// Lookup is the outcome of resolving one status string.
type Lookup struct {
	Score  float64
	Mapped bool
}

// StatusScoreMap holds the per-dimension status tables.
type StatusScoreMap map[Dimension]map[string]float64

// NewStatusScoreMap validates and indexes the configured status tables.
func NewStatusScoreMap(cfg config.StatusScoresConfig) (StatusScoreMap, error) {
	tables := map[Dimension][]config.StatusScore{
		Connectivity: cfg.Connectivity,
		Update:       cfg.Update,
		Alerts:       cfg.Alerts,
		Security:     cfg.Security,
	}

	m := make(StatusScoreMap, len(Dimensions))
	for _, d := range Dimensions {
		entries := make(map[string]float64, len(tables[d]))
		for _, e := range tables[d] {
			if e.Status == "" {
				return nil, errors.NewConfigurationError(fmt.Sprintf("%s status table has an empty status", d))
			}
			if e.Score < 0 || e.Score > 1 || math.IsNaN(e.Score) {
				return nil, errors.NewConfigurationError(fmt.Sprintf("%s score for %q must be in [0,1], got %v", d, e.Status, e.Score))
			}
			if _, dup := entries[e.Status]; dup {
				return nil, errors.NewConfigurationError(fmt.Sprintf("%s status table lists %q twice", d, e.Status))
			}
			entries[e.Status] = e.Score
		}
		m[d] = entries
	}
	return m, nil
}

// Lookup resolves status for dimension d. Unknown statuses are reported as
// unmapped with a zero score.
func (m StatusScoreMap) Lookup(d Dimension, status string) Lookup {
	score, ok := m[d][status]
	return Lookup{Score: score, Mapped: ok}
}

// UnmappedPolicy decides what an unmapped status does to a scoring run.
type UnmappedPolicy string

const (
	Lenient UnmappedPolicy = config.UnmappedLenient
	Strict  UnmappedPolicy = config.UnmappedStrict
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (UnmappedPolicy, error) {
	switch UnmappedPolicy(s) {
	case Lenient, Strict:
		return UnmappedPolicy(s), nil
	}
	return "", errors.NewConfigurationError(fmt.Sprintf("unknown unmapped status policy %q", s))
}

// ResourceScore is the derived score of a single resource.
type ResourceScore struct {
	Scores    map[Dimension]float64
	Composite float64
	Unmapped  []Dimension
}

// Scorer computes composite resource scores. It is immutable after
// construction and safe for concurrent use.
type Scorer struct {
	weights Weights
	maps    StatusScoreMap
	policy  UnmappedPolicy
	logger  logger.Logger
}

func NewScorer(weights Weights, maps StatusScoreMap, policy UnmappedPolicy, log logger.Logger) *Scorer {
	return &Scorer{
		weights: weights,
		maps:    maps,
		policy:  policy,
		logger:  log,
	}
}

// NewScorerFromConfig wires a Scorer from the scoring section.
func NewScorerFromConfig(cfg config.ScoringConfig, log logger.Logger) (*Scorer, error) {
	weights, err := WeightsFromConfig(cfg.Weights)
	if err != nil {
		return nil, err
	}
	maps, err := NewStatusScoreMap(cfg.StatusScores)
	if err != nil {
		return nil, err
	}
	policy, err := ParsePolicy(cfg.UnmappedStatus)
	if err != nil {
		return nil, err
	}
	return NewScorer(weights, maps, policy, log), nil
}

// Policy reports the configured unmapped status policy.
func (s *Scorer) Policy() UnmappedPolicy {
	return s.policy
}

// Score computes the weighted composite for one resource. statuses must
// carry an entry for every dimension; the site and resource names only
// identify the resource in errors and logs.
func (s *Scorer) Score(siteName, resourceName string, statuses map[Dimension]string) (ResourceScore, error) {
	rs := ResourceScore{Scores: make(map[Dimension]float64, len(Dimensions))}

	for _, d := range Dimensions {
		status := statuses[d]
		l := s.maps.Lookup(d, status)
		if !l.Mapped {
			if s.policy == Strict {
				return ResourceScore{}, errors.NewUnmappedStatusError(siteName, resourceName, string(d), status)
			}
			metrics.UnmappedStatuses.WithLabelValues(string(d)).Inc()
			s.logger.Debug("unmapped status scored as 0", map[string]interface{}{
				"siteName":     siteName,
				"resourceName": resourceName,
				"dimension":    string(d),
				"status":       status,
			})
			rs.Unmapped = append(rs.Unmapped, d)
		}
		rs.Scores[d] = l.Score
		rs.Composite += s.weights[d] * l.Score
	}

	// float error can push a perfect score a hair past 1
	rs.Composite = math.Min(math.Max(rs.Composite, 0), 1)
	return rs, nil
}

// Round rounds half away from zero to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
