// internal/workers/sitehealth/rank-sites/handler.go
package ranksites

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/common/metrics"
	"sitesight/internal/pipeline"
	"sitesight/internal/sites"
	"sitesight/internal/source"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "rank-sites"
)

// Runner is satisfied by *pipeline.Service.
type Runner interface {
	Run(ctx context.Context, in []sites.Site) (*pipeline.Run, error)
}

type Handler struct {
	config       *Config
	runner       Runner
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, runner Runner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runner:       runner,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, errors.NewDocumentInvalidError([]string{fmt.Sprintf("parse job variables: %v", err)}))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	in, err := h.loadSites(ctx, input)
	if err != nil {
		return nil, err
	}

	run, err := h.runner.Run(ctx, in)
	if err != nil {
		return nil, err
	}

	h.logger.Info("sites ranked", map[string]interface{}{
		"runId": run.RunID,
		"sites": len(run.Results),
	})

	return &Output{
		RunID:       run.RunID,
		GeneratedAt: run.GeneratedAt.Format(time.RFC3339),
		OrderBy:     run.OrderBy,
		SiteCount:   len(run.Results),
		RankedSites: run.Results,
	}, nil
}

func (h *Handler) loadSites(ctx context.Context, input *Input) ([]sites.Site, error) {
	if len(input.Sites) > 0 && string(input.Sites) != "null" {
		return source.Decode(input.Sites)
	}

	path := input.SitesPath
	if path == "" {
		path = h.config.DefaultSitesPath
	}
	if path == "" {
		return nil, errors.NewDocumentInvalidError([]string{"job carries neither sites nor sitesPath"})
	}
	return source.NewFileSource(path, h.logger).Load(ctx)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeInternal)).Inc()
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeInternal)).Inc()
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
