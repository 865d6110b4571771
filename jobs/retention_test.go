package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubPruner struct {
	cutoffs []time.Time
	removed int64
	err     error
}

func (p *stubPruner) PruneResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.removed, p.err
}

func TestRetentionJobUsesPayloadRetention(t *testing.T) {
	pruner := &stubPruner{removed: 3}
	job := NewRetentionJob(pruner, nil, 720*time.Hour)
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	task, err := NewAlertRetentionTask(AlertRetentionPayload{Retention: 24 * time.Hour})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, pruner.cutoffs, 1)
	require.True(t, pruner.cutoffs[0].Equal(now.Add(-24*time.Hour)))
}

func TestRetentionJobFallsBackToDefault(t *testing.T) {
	pruner := &stubPruner{}
	job := NewRetentionJob(pruner, nil, 720*time.Hour)
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	task, err := NewAlertRetentionTask(AlertRetentionPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, pruner.cutoffs, 1)
	require.True(t, pruner.cutoffs[0].Equal(now.Add(-720*time.Hour)))
}

func TestRetentionJobSkipsMalformedPayload(t *testing.T) {
	pruner := &stubPruner{}
	job := NewRetentionJob(pruner, nil, 720*time.Hour)

	task := asynq.NewTask(TaskTypeAlertRetention, []byte("not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, pruner.cutoffs)
}

func TestRetentionJobPropagatesPrunerError(t *testing.T) {
	wantErr := errors.New("db down")
	job := NewRetentionJob(&stubPruner{err: wantErr}, nil, 720*time.Hour)

	task, err := NewAlertRetentionTask(AlertRetentionPayload{Retention: time.Hour})
	require.NoError(t, err)

	require.ErrorIs(t, job.Handle(context.Background(), task), wantErr)
}
