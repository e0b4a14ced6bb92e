// Package pipeline composes scoring, aggregation, ranking and recommendation
// into a single request-scoped computation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/common/metrics"
	"sitesight/internal/common/observability"
	"sitesight/internal/model"
	"sitesight/internal/ranking"
	"sitesight/internal/recommend"
	"sitesight/internal/scoring"
	"sitesight/internal/sites"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sitesight/pipeline"

// Dependencies are the immutable collaborators of a Service. Sink and
// Observability are optional.
type Dependencies struct {
	Scorer        *scoring.Scorer
	Ranker        *ranking.Ranker
	Engine        *recommend.Engine
	Sink          Sink
	Observability *observability.Observability
	Logger        logger.Logger
	Now           func() time.Time
}

// Service runs the pipeline. It holds no per-call state and is safe for
// concurrent use.
type Service struct {
	scorer *scoring.Scorer
	ranker *ranking.Ranker
	engine *recommend.Engine
	sink   Sink
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(deps Dependencies) (*Service, error) {
	if deps.Scorer == nil || deps.Ranker == nil || deps.Engine == nil {
		return nil, errors.NewConfigurationError("pipeline needs a scorer, a ranker and a recommendation engine")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		scorer: deps.Scorer,
		ranker: deps.Ranker,
		engine: deps.Engine,
		sink:   deps.Sink,
		obs:    deps.Observability,
		logger: deps.Logger,
		now:    deps.Now,
		tracer: observability.Tracer(tracerName),
	}, nil
}

// NewServiceFromConfig wires a Service from configuration and a loaded
// model bundle.
func NewServiceFromConfig(cfg *config.Config, bundle *model.Bundle, sink Sink, obs *observability.Observability, log logger.Logger) (*Service, error) {
	scorer, err := scoring.NewScorerFromConfig(cfg.Scoring, log)
	if err != nil {
		return nil, err
	}
	policy, err := ranking.ParsePolicy(cfg.Ranking.OrderBy)
	if err != nil {
		return nil, err
	}
	opts, err := recommend.OptionsFromConfig(cfg.Recommendation)
	if err != nil {
		return nil, err
	}

	return NewService(Dependencies{
		Scorer:        scorer,
		Ranker:        ranking.NewRanker(bundle.Ranker, bundle.RankingSchema, policy, log),
		Engine:        recommend.NewEngine(bundle.Classifier, bundle.RecommendationSchema, opts, log),
		Sink:          sink,
		Observability: obs,
		Logger:        log,
	})
}

// Flatten validates and scores the input without touching any model.
func (s *Service) Flatten(in []sites.Site) ([]sites.Record, error) {
	return sites.Flatten(s.scorer, in)
}

// Rank computes ranked results for the given sites. Any error aborts the
// whole batch; no partial results are returned.
func (s *Service) Rank(ctx context.Context, in []sites.Site) ([]RankedSiteResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.rank", trace.WithAttributes(attribute.Int("sites.input", len(in))))
	defer span.End()

	results, err := s.rank(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("sites.ranked", len(results)))
	return results, nil
}

func (s *Service) rank(ctx context.Context, in []sites.Site) ([]RankedSiteResult, error) {
	if len(in) == 0 {
		return []RankedSiteResult{}, nil
	}

	for _, name := range sites.Empty(in) {
		s.logger.Warn("site has no resources and is not ranked", map[string]interface{}{"siteName": name})
	}

	_, flattenSpan := s.tracer.Start(ctx, "pipeline.flatten")
	records, err := s.Flatten(in)
	flattenSpan.End()
	if err != nil {
		return nil, err
	}

	aggs := sites.Aggregate(records)

	rankCtx, rankSpan := s.tracer.Start(ctx, "pipeline.ranking")
	ranked, err := s.ranker.Rank(rankCtx, aggs)
	rankSpan.End()
	if err != nil {
		return nil, err
	}

	bySite := make(map[string][]sites.Record, len(aggs))
	for _, rec := range records {
		bySite[rec.SiteName] = append(bySite[rec.SiteName], rec)
	}

	recCtx, recSpan := s.tracer.Start(ctx, "pipeline.recommend")
	defer recSpan.End()

	results := make([]RankedSiteResult, 0, len(ranked))
	for _, r := range ranked {
		siteRecords := bySite[r.SiteName]
		recs, err := s.engine.RecommendAll(recCtx, siteRecords)
		if err != nil {
			return nil, err
		}
		results = append(results, buildResult(r, siteRecords, recs))
	}

	metrics.SitesRanked.Add(float64(len(results)))
	return results, nil
}

func buildResult(r ranking.Ranked, records []sites.Record, recs []recommend.Result) RankedSiteResult {
	signals := make(map[string]float64, len(scoring.Dimensions))
	for _, d := range scoring.Dimensions {
		signals[string(d)] = scoring.Round(r.DimensionMeans[d], 2)
	}

	byResource := make(map[string][]string, len(recs))
	resources := make([]ResourceResult, len(records))
	for i, rec := range records {
		byResource[rec.ResourceName] = recs[i].Actions
		resources[i] = ResourceResult{
			ResourceName:         rec.ResourceName,
			ResourceType:         rec.ResourceType,
			ResourceHealthScore:  rec.ResourceHealthScore,
			Recommendations:      recs[i].Actions,
			RecommendationSource: string(recs[i].Path),
		}
	}

	return RankedSiteResult{
		SiteName:        r.SiteName,
		RankScore:       scoring.Round(r.RankScore, 4),
		SiteHealthScore: scoring.Round(r.SiteHealthScore, 2),
		RankLabel:       r.RankLabel,
		HealthSignals:   signals,
		Connectivity:    r.DimensionMeans[scoring.Connectivity],
		Update:          r.DimensionMeans[scoring.Update],
		Alerts:          r.DimensionMeans[scoring.Alerts],
		Security:        r.DimensionMeans[scoring.Security],
		Recommendations: byResource,
		Resources:       resources,
	}
}

// Run ranks the sites and hands the result to the sink. When only the sink
// fails, the computed run is returned together with a SINK_WRITE_FAILED error.
func (s *Service) Run(ctx context.Context, in []sites.Site) (*Run, error) {
	start := s.now()
	runID := uuid.New().String()
	log := s.logger.WithFields(map[string]interface{}{"runId": runID})

	ctx, span := s.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	log.Info("pipeline run started", map[string]interface{}{
		"sites":   len(in),
		"orderBy": string(s.ranker.Policy()),
	})

	results, err := s.Rank(ctx, in)
	if err != nil {
		s.finish(ctx, log, start, len(in), err)
		return nil, err
	}

	run := &Run{
		RunID:       runID,
		GeneratedAt: start.UTC(),
		OrderBy:     string(s.ranker.Policy()),
		Results:     results,
	}

	if s.sink != nil {
		_, sinkSpan := s.tracer.Start(ctx, "pipeline.sink", trace.WithAttributes(attribute.String("sink", s.sink.Name())))
		err = s.sink.Write(ctx, run)
		sinkSpan.End()
		if err != nil {
			if !errors.HasCode(err, errors.ErrCodeSinkWriteFailed) {
				err = errors.NewSinkWriteFailedError(s.sink.Name(), err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, string(errors.ErrCodeSinkWriteFailed))
			s.finish(ctx, log, start, len(results), err)
			return run, err
		}
	}

	s.finish(ctx, log, start, len(results), nil)
	return run, nil
}

func (s *Service) finish(ctx context.Context, log logger.Logger, start time.Time, count int, err error) {
	duration := s.now().Sub(start)
	outcome := "success"
	if err != nil {
		outcome = string(errors.CodeOf(err))
	}

	metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	metrics.PipelineDuration.Observe(duration.Seconds())
	if s.obs != nil {
		s.obs.RecordRun(ctx, outcome, count, duration)
	}

	fields := map[string]interface{}{
		"sites":      count,
		"outcome":    outcome,
		"durationMs": duration.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err
		log.Error("pipeline run failed", fields)
		return
	}
	log.Info("pipeline run finished", fields)
}

// String implements fmt.Stringer for log output.
func (r *Run) String() string {
	return fmt.Sprintf("run %s (%d sites, order %s)", r.RunID, len(r.Results), r.OrderBy)
}
