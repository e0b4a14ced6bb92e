package model

import (
	"fmt"
	"time"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	commonhttp "sitesight/internal/common/http"
	"sitesight/internal/common/logger"
	"sitesight/internal/common/validation"
	"sitesight/internal/features"
)

// Bundle is the immutable set of models and schemas a pipeline serves with.
type Bundle struct {
	Ranker               Ranker
	RankingSchema        features.Schema
	Classifier           Classifier
	RecommendationSchema features.Schema
}

// schemaChecked is implemented by local models that know their input width.
type schemaChecked interface {
	NumFeatures() int
	FeatureNames() []string
}

// Load builds the bundle described by the models section. A disabled
// recommendation model yields a NopClassifier.
func Load(cfg config.ModelsConfig, log logger.Logger) (*Bundle, error) {
	rankSchema, err := features.LoadSchema(cfg.Ranking.SchemaPath)
	if err != nil {
		return nil, err
	}

	b := &Bundle{RankingSchema: rankSchema, Classifier: NopClassifier{}}

	switch cfg.Backend {
	case config.BackendRemote:
		client := commonhttp.NewClient(config.GetDuration(cfg.Timeout))
		if !validation.ValidateURL(cfg.Ranking.Endpoint) {
			return nil, errors.NewConfigurationError(fmt.Sprintf("invalid ranking endpoint %q", cfg.Ranking.Endpoint))
		}
		b.Ranker = NewRemoteRanker(client, cfg.Ranking.Endpoint)

		if cfg.Recommendation.Enabled {
			if !validation.ValidateURL(cfg.Recommendation.Endpoint) {
				return nil, errors.NewConfigurationError(fmt.Sprintf("invalid recommendation endpoint %q", cfg.Recommendation.Endpoint))
			}
			b.Classifier = NewRemoteClassifier(client, cfg.Recommendation.Endpoint)
		}

	default:
		start := time.Now()
		ranker, err := LoadTreeEnsemble(cfg.Ranking.ModelPath)
		if err != nil {
			return nil, errors.NewConfigurationError(err.Error())
		}
		if err := checkSchema("ranking", ranker, rankSchema); err != nil {
			return nil, err
		}
		b.Ranker = ranker
		log.Info("ranking model loaded", map[string]interface{}{
			"path":       cfg.Ranking.ModelPath,
			"features":   ranker.NumFeatures(),
			"trees":      len(ranker.trees),
			"durationMs": time.Since(start).Milliseconds(),
		})

		if cfg.Recommendation.Enabled {
			forest, err := LoadForest(cfg.Recommendation.ModelPath)
			if err != nil {
				return nil, errors.NewConfigurationError(err.Error())
			}
			b.Classifier = forest
			log.Info("recommendation model loaded", map[string]interface{}{
				"path":       cfg.Recommendation.ModelPath,
				"features":   forest.NumFeatures(),
				"estimators": len(forest.trees),
				"labels":     len(forest.binarizer.Classes),
			})
		}
	}

	if cfg.Recommendation.Enabled {
		recSchema, err := features.LoadSchema(cfg.Recommendation.SchemaPath)
		if err != nil {
			return nil, err
		}
		if forest, ok := b.Classifier.(*Forest); ok {
			if err := checkSchema("recommendation", forest, recSchema); err != nil {
				return nil, err
			}
		}
		b.RecommendationSchema = recSchema
	} else {
		log.Warn("recommendation model disabled, every resource uses rule fallback", nil)
	}

	return b, nil
}

func checkSchema(name string, m schemaChecked, schema features.Schema) error {
	if m.NumFeatures() != len(schema) {
		return errors.NewConfigurationError(fmt.Sprintf("%s model expects %d features, schema lists %d", name, m.NumFeatures(), len(schema)))
	}
	if names := m.FeatureNames(); len(names) > 0 {
		if len(names) != len(schema) {
			return errors.NewConfigurationError(fmt.Sprintf("%s model names %d features, schema lists %d", name, len(names), len(schema)))
		}
		for i, col := range schema {
			if names[i] != col {
				return errors.NewConfigurationError(fmt.Sprintf("%s schema column %d is %q, model was trained with %q", name, i, col, names[i]))
			}
		}
	}
	return nil
}
