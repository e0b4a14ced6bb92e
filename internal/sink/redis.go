package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sitesight/internal/pipeline"

	"github.com/redis/go-redis/v9"
)

// Redis stores the latest run under <prefix>:latest and, when runTTL is
// positive, a short-lived copy under <prefix>:run:<runId>.
type Redis struct {
	client redis.Cmdable
	prefix string
	runTTL time.Duration
}

func NewRedis(client redis.Cmdable, prefix string, runTTL time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, runTTL: runTTL}
}

func (r *Redis) Name() string { return "redis" }

// LatestKey is the key holding the most recent run.
func (r *Redis) LatestKey() string { return r.prefix + ":latest" }

// RunKey is the key holding a specific run.
func (r *Redis) RunKey(runID string) string { return r.prefix + ":run:" + runID }

func (r *Redis) Write(ctx context.Context, run *pipeline.Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	if r.runTTL > 0 {
		if err := r.client.Set(ctx, r.RunKey(run.RunID), string(payload), r.runTTL).Err(); err != nil {
			return fmt.Errorf("set %s: %w", r.RunKey(run.RunID), err)
		}
	}
	if err := r.client.Set(ctx, r.LatestKey(), string(payload), 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.LatestKey(), err)
	}
	return nil
}
