package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// AlertPruner removes resolved alerts older than a cutoff.
type AlertPruner interface {
	PruneResolved(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob prunes resolved alerts past their retention horizon.
// The store publishes a change-feed event for the deletion, so live
// dashboard views refresh on their own.
type RetentionJob struct {
	pruner           AlertPruner
	logger           *slog.Logger
	defaultRetention time.Duration
	now              func() time.Time
}

// NewRetentionJob constructs a RetentionJob.
func NewRetentionJob(pruner AlertPruner, logger *slog.Logger, defaultRetention time.Duration) *RetentionJob {
	return &RetentionJob{
		pruner:           pruner,
		logger:           logger,
		defaultRetention: defaultRetention,
		now:              time.Now,
	}
}

// Handle processes TaskTypeAlertRetention tasks.
func (j *RetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AlertRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = j.defaultRetention
	}
	cutoff := j.now().Add(-retention)
	removed, err := j.pruner.PruneResolved(ctx, cutoff)
	if err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("alert retention run",
			slog.Time("cutoff", cutoff),
			slog.Int64("removed", removed))
	}
	return nil
}
