package pipeline

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/features"
	"sitesight/internal/model"
	"sitesight/internal/ranking"
	"sitesight/internal/recommend"
	"sitesight/internal/scoring"
	"sitesight/internal/sites"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rankSchema = features.Schema{"ConnectivityScore", "UpdateScore", "AlertScore", "SecurityScore", "Type_VM"}

var recSchema = features.Schema{"Security_Compliant", "Security_NonCompliant"}

// meanScorer scores a site by the sum of its dimension columns.
var meanScorer = model.RankerFunc(func(_ context.Context, rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row[0] + row[1] + row[2] + row[3]
	}
	return out, nil
})

type recordingSink struct {
	runs []*Run
	err  error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, run *Run) error {
	s.runs = append(s.runs, run)
	return s.err
}

func status(s string) *sites.StatusField { return &sites.StatusField{Status: s} }

func site(name string, resources ...sites.Resource) sites.Site {
	return sites.Site{SiteName: name, Resources: resources}
}

func resource(name, c, u, a, s string) sites.Resource {
	return sites.Resource{
		ResourceName: name,
		ResourceType: "VM",
		Connectivity: status(c),
		Update:       status(u),
		Alerts:       status(a),
		Security:     status(s),
	}
}

type fixture struct {
	ranker     model.Ranker
	classifier model.Classifier
	policy     ranking.Policy
	sink       Sink
}

func newService(t *testing.T, f fixture) *Service {
	t.Helper()
	if f.ranker == nil {
		f.ranker = meanScorer
	}
	if f.classifier == nil {
		f.classifier = model.NopClassifier{}
	}
	if f.policy == "" {
		f.policy = ranking.ByRankScore
	}
	log := logger.NewTestLogger(t)

	scorer, err := scoring.NewScorerFromConfig(config.ScoringConfig{
		UnmappedStatus: config.UnmappedLenient,
		Weights:        config.DimensionWeights{Connectivity: 0.3, Update: 0.3, Alerts: 0.2, Security: 0.2},
		StatusScores:   config.DefaultStatusScores(),
	}, log)
	require.NoError(t, err)

	opts, err := recommend.OptionsFromConfig(config.RecommendationConfig{
		Selection:   config.SelectionFirst,
		MaxFallback: 3,
		NoAction:    "No action required",
		Rules:       config.DefaultRecommendationRules(),
	})
	require.NoError(t, err)

	svc, err := NewService(Dependencies{
		Scorer: scorer,
		Ranker: ranking.NewRanker(f.ranker, rankSchema, f.policy, log),
		Engine: recommend.NewEngine(f.classifier, recSchema, opts, log),
		Sink:   f.sink,
		Logger: log,
		Now:    func() time.Time { return time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func TestRank_HealthySite(t *testing.T) {
	svc := newService(t, fixture{})

	results, err := svc.Rank(context.Background(), []sites.Site{
		site("A", resource("A-vm", "Connected", "UptoDate", "NoAlerts", "Compliant")),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, "A", got.SiteName)
	assert.Equal(t, 1.0, got.SiteHealthScore)
	assert.Equal(t, 0, got.RankLabel)
	assert.Equal(t, 4.0, got.RankScore)
	assert.Equal(t, map[string][]string{"A-vm": {"No action required"}}, got.Recommendations)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, 1.0, got.Resources[0].ResourceHealthScore)
	assert.Equal(t, string(recommend.PathFallback), got.Resources[0].RecommendationSource)
}

func TestRank_NonCompliantSite(t *testing.T) {
	svc := newService(t, fixture{})

	results, err := svc.Rank(context.Background(), []sites.Site{
		site("A", resource("A-vm", "Connected", "UptoDate", "NoAlerts", "NonCompliant")),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, 0.88, got.SiteHealthScore, "0.875 rounds half away from zero")
	assert.Equal(t, 0.5, got.Security, "dimension means stay unrounded")
	assert.Equal(t, 0.5, got.HealthSignals["Security"])
	assert.Equal(t, 0, got.RankLabel)
	assert.Equal(t, 0.9, got.Resources[0].ResourceHealthScore)
	assert.Equal(t, []string{"Check patch compliance"}, got.Recommendations["A-vm"])
}

func TestRank_OrderingPolicies(t *testing.T) {
	input := []sites.Site{
		site("Healthy", resource("h1", "Connected", "UptoDate", "NoAlerts", "NonCompliant")),
		site("Degraded", resource("d1", "NotRecentlyConnected", "NeedsAttention", "NeedsAttention", "NonCompliant")),
	}

	// inverted learns the opposite of health, so RankScore order and health
	// order disagree.
	inverted := model.RankerFunc(func(_ context.Context, rows [][]float64) ([]float64, error) {
		out := make([]float64, len(rows))
		for i, row := range rows {
			out[i] = -(row[0] + row[1] + row[2] + row[3])
		}
		return out, nil
	})

	tests := []struct {
		name   string
		ranker model.Ranker
		policy ranking.Policy
		want   []string
	}{
		{"rank score follows a health-aligned model", meanScorer, ranking.ByRankScore, []string{"Healthy", "Degraded"}},
		{"rank score follows an inverted model", inverted, ranking.ByRankScore, []string{"Degraded", "Healthy"}},
		{"ascending health ignores the model", meanScorer, ranking.ByHealthAscending, []string{"Degraded", "Healthy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, fixture{ranker: tt.ranker, policy: tt.policy})
			results, err := svc.Rank(context.Background(), input)
			require.NoError(t, err)

			got := make([]string, len(results))
			for i, r := range results {
				got[i] = r.SiteName
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRank_EmptyInputs(t *testing.T) {
	svc := newService(t, fixture{})

	results, err := svc.Rank(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Rank(context.Background(), []sites.Site{
		site("Empty"),
		site("A", resource("A-vm", "Connected", "UptoDate", "NoAlerts", "Compliant")),
	})
	require.NoError(t, err)
	require.Len(t, results, 1, "sites without resources are not ranked")
	assert.Equal(t, "A", results[0].SiteName)
}

func TestRank_FailuresAbortTheBatch(t *testing.T) {
	t.Run("malformed input", func(t *testing.T) {
		bad := resource("A-vm", "Connected", "UptoDate", "NoAlerts", "Compliant")
		bad.Security = nil

		_, err := newService(t, fixture{}).Rank(context.Background(), []sites.Site{site("A", bad)})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeMalformedInput, errors.CodeOf(err))
	})

	t.Run("ranking model failure", func(t *testing.T) {
		broken := model.RankerFunc(func(context.Context, [][]float64) ([]float64, error) {
			return nil, stderrors.New("booster unavailable")
		})
		_, err := newService(t, fixture{ranker: broken}).Rank(context.Background(), []sites.Site{
			site("A", resource("A-vm", "Connected", "UptoDate", "NoAlerts", "Compliant")),
		})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeModelInferenceFailed, errors.CodeOf(err))
	})

	t.Run("recommendation model failure", func(t *testing.T) {
		broken := model.ClassifierFunc(func(context.Context, [][]float64) ([][]string, error) {
			return nil, stderrors.New("forest unavailable")
		})
		_, err := newService(t, fixture{classifier: broken}).Rank(context.Background(), []sites.Site{
			site("A", resource("A-vm", "Connected", "UptoDate", "NoAlerts", "Compliant")),
		})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeModelInferenceFailed, errors.CodeOf(err))
	})
}

func TestRun_WritesToSink(t *testing.T) {
	sink := &recordingSink{}
	svc := newService(t, fixture{sink: sink})

	run, err := svc.Run(context.Background(), []sites.Site{
		site("A", resource("A-vm", "Connected", "UptoDate", "NoAlerts", "Compliant")),
	})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, "rank_score", run.OrderBy)
	assert.Equal(t, time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC), run.GeneratedAt)
	require.Len(t, sink.runs, 1)
	assert.Same(t, run, sink.runs[0])
}

func TestRun_SinkFailureKeepsTheResult(t *testing.T) {
	sink := &recordingSink{err: stderrors.New("connection refused")}
	svc := newService(t, fixture{sink: sink})

	run, err := svc.Run(context.Background(), []sites.Site{
		site("A", resource("A-vm", "Connected", "UptoDate", "NoAlerts", "Compliant")),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSinkWriteFailed, errors.CodeOf(err))
	require.NotNil(t, run)
	assert.Len(t, run.Results, 1)
}

func TestRun_ComputationFailureSkipsSink(t *testing.T) {
	sink := &recordingSink{}
	svc := newService(t, fixture{sink: sink})

	bad := resource("", "Connected", "UptoDate", "NoAlerts", "Compliant")
	run, err := svc.Run(context.Background(), []sites.Site{site("A", bad)})
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Empty(t, sink.runs)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Dependencies{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigurationInvalid, errors.CodeOf(err))
}
