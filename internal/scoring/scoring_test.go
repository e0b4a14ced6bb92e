package scoring

import (
	"testing"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultScorer(t *testing.T, policy UnmappedPolicy) *Scorer {
	t.Helper()
	weights, err := WeightsFromConfig(config.DimensionWeights{Connectivity: 0.3, Update: 0.3, Alerts: 0.2, Security: 0.2})
	require.NoError(t, err)
	maps, err := NewStatusScoreMap(config.DefaultStatusScores())
	require.NoError(t, err)
	return NewScorer(weights, maps, policy, logger.NewTestLogger(t))
}

func statuses(c, u, a, s string) map[Dimension]string {
	return map[Dimension]string{Connectivity: c, Update: u, Alerts: a, Security: s}
}

func TestNewWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights map[Dimension]float64
		wantErr bool
	}{
		{"default split", map[Dimension]float64{Connectivity: 0.3, Update: 0.3, Alerts: 0.2, Security: 0.2}, false},
		{"all on one dimension", map[Dimension]float64{Connectivity: 1, Update: 0, Alerts: 0, Security: 0}, false},
		{"sum below one", map[Dimension]float64{Connectivity: 0.3, Update: 0.3, Alerts: 0.2, Security: 0.1}, true},
		{"negative weight", map[Dimension]float64{Connectivity: 0.6, Update: 0.6, Alerts: -0.2, Security: 0}, true},
		{"missing dimension", map[Dimension]float64{Connectivity: 0.5, Update: 0.5, Alerts: 0}, true},
		{"unknown dimension", map[Dimension]float64{Connectivity: 0.3, Update: 0.3, Alerts: 0.2, Security: 0.2, "Power": 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWeights(tt.weights)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeConfigurationInvalid))
				return
			}
			require.NoError(t, err)
			sum := 0.0
			for _, v := range w {
				sum += v
			}
			assert.InDelta(t, 1.0, sum, weightTolerance)
		})
	}
}

func TestNewStatusScoreMap_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StatusScoresConfig
	}{
		{"score above one", config.StatusScoresConfig{Connectivity: []config.StatusScore{{Status: "Connected", Score: 1.5}}}},
		{"empty status", config.StatusScoresConfig{Alerts: []config.StatusScore{{Status: "", Score: 1}}}},
		{"duplicate status", config.StatusScoresConfig{Security: []config.StatusScore{{Status: "Compliant", Score: 1}, {Status: "Compliant", Score: 0.5}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStatusScoreMap(tt.cfg)
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigurationInvalid))
		})
	}
}

func TestStatusScoreMap_Lookup(t *testing.T) {
	maps, err := NewStatusScoreMap(config.DefaultStatusScores())
	require.NoError(t, err)

	assert.Equal(t, Lookup{Score: 1, Mapped: true}, maps.Lookup(Connectivity, "Connected"))
	assert.Equal(t, Lookup{Score: 0, Mapped: true}, maps.Lookup(Connectivity, "NotRecentlyConnected"))
	assert.Equal(t, Lookup{Score: 0, Mapped: false}, maps.Lookup(Connectivity, "Offline"))
	// status strings are case sensitive
	assert.False(t, maps.Lookup(Security, "compliant").Mapped)
}

func TestScorer_Score(t *testing.T) {
	s := defaultScorer(t, Lenient)

	tests := []struct {
		name      string
		statuses  map[Dimension]string
		composite float64
	}{
		{"all healthy", statuses("Connected", "UptoDate", "NoAlerts", "Compliant"), 1.0},
		{"non compliant", statuses("Connected", "UptoDate", "NoAlerts", "NonCompliant"), 0.9},
		{"disconnected and unknown", statuses("NotRecentlyConnected", "Unknown", "NeedsAttention", "NonCompliant"), 0.2},
		{"mixed", statuses("NeedsAttention", "UpdateAvailable", "NoAlerts", "Compliant"), 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := s.Score("A", "A-1", tt.statuses)
			require.NoError(t, err)
			assert.InDelta(t, tt.composite, rs.Composite, 1e-9)
			assert.GreaterOrEqual(t, rs.Composite, 0.0)
			assert.LessOrEqual(t, rs.Composite, 1.0)
			assert.Empty(t, rs.Unmapped)
		})
	}
}

func TestScorer_UnmappedPolicy(t *testing.T) {
	in := statuses("Connected", "Patched", "NoAlerts", "Compliant")

	t.Run("lenient scores zero", func(t *testing.T) {
		rs, err := defaultScorer(t, Lenient).Score("A", "A-1", in)
		require.NoError(t, err)
		assert.Equal(t, 0.0, rs.Scores[Update])
		assert.Equal(t, []Dimension{Update}, rs.Unmapped)
		assert.InDelta(t, 0.7, rs.Composite, 1e-9)
	})

	t.Run("strict fails with identity", func(t *testing.T) {
		_, err := defaultScorer(t, Strict).Score("A", "A-1", in)
		require.Error(t, err)
		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeConfigurationInvalid, stdErr.Code)
		assert.Equal(t, "A", stdErr.SiteName())
		assert.Equal(t, "A-1", stdErr.ResourceName())
	})
}

func TestNewScorerFromConfig(t *testing.T) {
	_, err := NewScorerFromConfig(config.ScoringConfig{
		UnmappedStatus: "ignore",
		Weights:        config.DimensionWeights{Connectivity: 0.25, Update: 0.25, Alerts: 0.25, Security: 0.25},
		StatusScores:   config.DefaultStatusScores(),
	}, logger.NewNoOpLogger())
	assert.Error(t, err)

	s, err := NewScorerFromConfig(config.ScoringConfig{
		UnmappedStatus: "strict",
		Weights:        config.DimensionWeights{Connectivity: 0.25, Update: 0.25, Alerts: 0.25, Security: 0.25},
		StatusScores:   config.DefaultStatusScores(),
	}, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, Strict, s.Policy())
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.88, Round(0.875, 2))
	assert.Equal(t, 0.9, Round(0.8999999, 2))
	assert.Equal(t, 1.2346, Round(1.23456, 4))
	assert.Equal(t, -0.13, Round(-0.125, 2))
}
