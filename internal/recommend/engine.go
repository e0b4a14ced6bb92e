// Package recommend produces remediation actions per resource, from the
// trained classifier when it has an answer and from a rule table otherwise.
package recommend

import (
	"context"
	"fmt"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/common/metrics"
	"sitesight/internal/features"
	"sitesight/internal/model"
	"sitesight/internal/sites"
)

const modelName = "recommendation"

// Path records where a resource's actions came from.
type Path string

const (
	PathModel    Path = "model"
	PathFallback Path = "fallback"
)

// Result is the recommendation for one resource.
type Result struct {
	ResourceName string
	Actions      []string
	Path         Path
}

// Options tunes the fallback path.
type Options struct {
	Rules       []Rule
	Selector    Selector
	MaxFallback int
	NoAction    string
}

// OptionsFromConfig validates the recommendation section.
func OptionsFromConfig(cfg config.RecommendationConfig) (Options, error) {
	rules, err := RulesFromConfig(cfg.Rules)
	if err != nil {
		return Options{}, err
	}
	selector, err := NewSelector(cfg)
	if err != nil {
		return Options{}, err
	}
	if cfg.MaxFallback < 1 {
		return Options{}, errors.NewConfigurationError("recommendation.max_fallback must be positive")
	}
	if cfg.NoAction == "" {
		return Options{}, errors.NewConfigurationError("recommendation.no_action must not be empty")
	}
	return Options{
		Rules:       rules,
		Selector:    selector,
		MaxFallback: cfg.MaxFallback,
		NoAction:    cfg.NoAction,
	}, nil
}

type Engine struct {
	classifier model.Classifier
	schema     features.Schema
	opts       Options
	logger     logger.Logger
}

func NewEngine(classifier model.Classifier, schema features.Schema, opts Options, log logger.Logger) *Engine {
	if opts.Selector == nil {
		opts.Selector = FirstSelector{}
	}
	if opts.MaxFallback < 1 {
		opts.MaxFallback = 3
	}
	if opts.NoAction == "" {
		opts.NoAction = "No action required"
	}
	return &Engine{
		classifier: classifier,
		schema:     schema,
		opts:       opts,
		logger:     log,
	}
}

// Recommend returns the actions for a single resource record.
func (e *Engine) Recommend(ctx context.Context, rec sites.Record) ([]string, Path, error) {
	results, err := e.RecommendAll(ctx, []sites.Record{rec})
	if err != nil {
		return nil, "", err
	}
	return results[0].Actions, results[0].Path, nil
}

// RecommendAll classifies records in one model call and falls back to the
// rule table for every record whose predicted label set is empty. Results
// follow record order.
func (e *Engine) RecommendAll(ctx context.Context, records []sites.Record) ([]Result, error) {
	if len(records) == 0 {
		return []Result{}, nil
	}

	rows := make([][]float64, len(records))
	for i, rec := range records {
		rows[i] = features.Align(features.RecommendationVector(rec.Statuses), e.schema)
	}

	labels, err := e.classifier.Predict(ctx, rows)
	if err != nil {
		return nil, errors.NewBatchInferenceError(modelName, records[0].SiteName, records[0].ResourceName, len(records), err)
	}
	if len(labels) != len(records) {
		return nil, errors.NewBatchInferenceError(modelName, records[0].SiteName, records[0].ResourceName, len(records),
			fmt.Errorf("model returned %d label sets for %d resources", len(labels), len(records)))
	}

	results := make([]Result, len(records))
	for i, rec := range records {
		if len(labels[i]) > 0 {
			actions := make([]string, len(labels[i]))
			copy(actions, labels[i])
			results[i] = Result{ResourceName: rec.ResourceName, Actions: actions, Path: PathModel}
			metrics.Recommendations.WithLabelValues(string(PathModel)).Inc()
			continue
		}

		results[i] = Result{ResourceName: rec.ResourceName, Actions: e.Fallback(rec), Path: PathFallback}
		metrics.Recommendations.WithLabelValues(string(PathFallback)).Inc()
		e.logger.Debug("recommendation fallback used", map[string]interface{}{
			"siteName":     rec.SiteName,
			"resourceName": rec.ResourceName,
			"actions":      results[i].Actions,
		})
	}
	return results, nil
}

// Fallback applies the rule table: one action per firing rule, in rule
// order, capped at MaxFallback. When nothing fires it returns the no-action
// sentinel, so the result is never empty.
func (e *Engine) Fallback(rec sites.Record) []string {
	var actions []string
	for _, rule := range e.opts.Rules {
		if len(actions) == e.opts.MaxFallback {
			break
		}
		if rule.Matches(rec.Statuses) {
			actions = append(actions, e.opts.Selector.Pick(rule.Actions))
		}
	}
	if len(actions) == 0 {
		return []string{e.opts.NoAction}
	}
	return actions
}
