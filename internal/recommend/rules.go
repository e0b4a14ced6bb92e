package recommend

import (
	"fmt"
	"math/rand"
	"sync"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	"sitesight/internal/scoring"
)

// Rule emits one action from Actions when the resource's status for
// Dimension is one of Statuses.
type Rule struct {
	Dimension scoring.Dimension
	Statuses  map[string]bool
	Actions   []string
}

// Matches reports whether the rule fires for the given statuses.
func (r Rule) Matches(statuses map[scoring.Dimension]string) bool {
	return r.Statuses[statuses[r.Dimension]]
}

// RulesFromConfig validates the configured rule table, keeping its order.
func RulesFromConfig(cfg []config.RecommendationRule) ([]Rule, error) {
	valid := make(map[scoring.Dimension]bool, len(scoring.Dimensions))
	for _, d := range scoring.Dimensions {
		valid[d] = true
	}

	rules := make([]Rule, 0, len(cfg))
	for i, rc := range cfg {
		d := scoring.Dimension(rc.Dimension)
		if !valid[d] {
			return nil, errors.NewConfigurationError(fmt.Sprintf("recommendation rule %d has unknown dimension %q", i, rc.Dimension))
		}
		if len(rc.Statuses) == 0 {
			return nil, errors.NewConfigurationError(fmt.Sprintf("recommendation rule %d (%s) matches no statuses", i, d))
		}
		if len(rc.Actions) == 0 {
			return nil, errors.NewConfigurationError(fmt.Sprintf("recommendation rule %d (%s) has an empty action pool", i, d))
		}
		statuses := make(map[string]bool, len(rc.Statuses))
		for _, s := range rc.Statuses {
			statuses[s] = true
		}
		actions := make([]string, len(rc.Actions))
		copy(actions, rc.Actions)
		rules = append(rules, Rule{Dimension: d, Statuses: statuses, Actions: actions})
	}
	return rules, nil
}

// Selector picks one action from a non-empty pool.
type Selector interface {
	Pick(pool []string) string
}

// FirstSelector always picks the first pool entry.
type FirstSelector struct{}

func (FirstSelector) Pick(pool []string) string {
	return pool[0]
}

// RandomSelector picks uniformly. The same seed and call sequence yields the
// same picks.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSelector(seed int64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSelector) Pick(pool []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pool[s.rng.Intn(len(pool))]
}

// NewSelector builds the selector named by recommendation.selection.
func NewSelector(cfg config.RecommendationConfig) (Selector, error) {
	switch cfg.Selection {
	case config.SelectionFirst, "":
		return FirstSelector{}, nil
	case config.SelectionRandom:
		return NewRandomSelector(cfg.Seed), nil
	}
	return nil, errors.NewConfigurationError(fmt.Sprintf("unknown recommendation selection %q", cfg.Selection))
}
