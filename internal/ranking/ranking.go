// Package ranking orders site aggregates with a learned ranking model.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/features"
	"sitesight/internal/model"
	"sitesight/internal/sites"
)

const modelName = "ranking"

// Policy selects the key sites are ordered by. RankScore is reported under
// every policy.
type Policy string

const (
	// ByRankScore orders by model score, highest first.
	ByRankScore Policy = config.OrderByRankScore
	// ByHealthAscending orders by SiteHealthScore, least healthy first.
	ByHealthAscending Policy = config.OrderByHealthAscending
)

// ParsePolicy validates a configured ordering policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case ByRankScore, ByHealthAscending:
		return Policy(s), nil
	}
	return "", errors.NewConfigurationError(fmt.Sprintf("unknown ranking order %q", s))
}

// Ranked is a site aggregate with its model score.
type Ranked struct {
	sites.SiteAggregate
	RankScore float64
}

type Ranker struct {
	model  model.Ranker
	schema features.Schema
	policy Policy
	logger logger.Logger
}

func NewRanker(m model.Ranker, schema features.Schema, policy Policy, log logger.Logger) *Ranker {
	return &Ranker{
		model:  m,
		schema: schema,
		policy: policy,
		logger: log,
	}
}

// Policy reports the ordering policy in use.
func (r *Ranker) Policy() Policy {
	return r.policy
}

// Rank scores the whole batch in one model call and returns it ordered by
// the configured policy. Equal keys keep SiteName order.
func (r *Ranker) Rank(ctx context.Context, aggs []sites.SiteAggregate) ([]Ranked, error) {
	if len(aggs) == 0 {
		return []Ranked{}, nil
	}

	ordered := make([]sites.SiteAggregate, len(aggs))
	copy(ordered, aggs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SiteName < ordered[j].SiteName
	})

	batchTypes := BatchTypes(ordered)
	rows := make([][]float64, len(ordered))
	for i, agg := range ordered {
		v := features.RankingVector(agg.DimensionMeans, agg.ResourceTypes, batchTypes)
		rows[i] = features.Align(v, r.schema)
	}

	scores, err := r.model.Predict(ctx, rows)
	if err != nil {
		return nil, errors.NewBatchInferenceError(modelName, ordered[0].SiteName, "", len(rows), err)
	}
	if len(scores) != len(rows) {
		return nil, errors.NewBatchInferenceError(modelName, ordered[0].SiteName, "", len(rows),
			fmt.Errorf("model returned %d scores for %d sites", len(scores), len(rows)))
	}

	ranked := make([]Ranked, len(ordered))
	for i, agg := range ordered {
		if math.IsNaN(scores[i]) || math.IsInf(scores[i], 0) {
			return nil, errors.NewModelInferenceError(modelName, agg.SiteName, "",
				fmt.Errorf("model returned non-finite score %v", scores[i]))
		}
		ranked[i] = Ranked{SiteAggregate: agg, RankScore: scores[i]}
	}

	switch r.policy {
	case ByHealthAscending:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].SiteHealthScore < ranked[j].SiteHealthScore
		})
	default:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].RankScore > ranked[j].RankScore
		})
	}

	r.logger.Debug("sites ranked", map[string]interface{}{
		"sites":         len(ranked),
		"resourceTypes": len(batchTypes),
		"orderBy":       string(r.policy),
	})

	return ranked, nil
}

// BatchTypes is the sorted union of resource types across the batch.
func BatchTypes(aggs []sites.SiteAggregate) []string {
	seen := make(map[string]bool)
	var types []string
	for _, agg := range aggs {
		for _, t := range agg.ResourceTypes {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	sort.Strings(types)
	return types
}
