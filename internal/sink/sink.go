// Package sink persists finished pipeline runs. Every sink keeps only the
// latest result; none of them is a history store.
package sink

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/common/metrics"
	"sitesight/internal/pipeline"
)

// SiteDocument is one ranked site flattened with its run identity, as
// indexed or published per site.
type SiteDocument struct {
	RunID       string    `json:"runId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Position    int       `json:"position"`
	pipeline.RankedSiteResult
}

func documents(run *pipeline.Run) []SiteDocument {
	out := make([]SiteDocument, len(run.Results))
	for i, r := range run.Results {
		out[i] = SiteDocument{
			RunID:            run.RunID,
			GeneratedAt:      run.GeneratedAt,
			Position:         i + 1,
			RankedSiteResult: r,
		}
	}
	return out
}

func record(name string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.SinkWrites.WithLabelValues(name, outcome).Inc()
}

// Multi fans a run out to several sinks. Every sink is attempted; the
// failures are reported together.
type Multi struct {
	sinks  []pipeline.Sink
	logger logger.Logger
}

func NewMulti(log logger.Logger, sinks ...pipeline.Sink) *Multi {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Multi{sinks: sinks, logger: log}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

// Len reports how many sinks are configured.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Write(ctx context.Context, run *pipeline.Run) error {
	var (
		failed []string
		errs   []error
	)
	for _, s := range m.sinks {
		start := time.Now()
		err := s.Write(ctx, run)
		record(s.Name(), err)

		fields := map[string]interface{}{
			"sink":       s.Name(),
			"runId":      run.RunID,
			"durationMs": time.Since(start).Milliseconds(),
		}
		if err != nil {
			fields["error"] = err
			m.logger.Error("sink write failed", fields)
			failed = append(failed, s.Name())
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		m.logger.Debug("sink write finished", fields)
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.NewSinkWriteFailedError(strings.Join(failed, ","), stderrors.Join(errs...))
}
