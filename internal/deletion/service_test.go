package deletion_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/deletion"
)

func newService(t *testing.T) (*deletion.Service, *deletion.JobStore) {
	t.Helper()
	jobs, _ := newJobStore(t)
	return deletion.NewService(zap.NewNop(), jobs), jobs
}

func TestService_RequestCreatesQueuedJob(t *testing.T) {
	service, jobs := newService(t)
	ctx := context.Background()

	result, err := service.RequestDeletion(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, deletion.StatusQueued, result.Status)
	assert.Equal(t, "alice", result.JobID)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusQueued, job.Status)
	assert.Equal(t, 0, job.Attempt)
	assert.False(t, job.RequestedAt.IsZero())
}

func TestService_RepeatedRequestIsIdempotent(t *testing.T) {
	service, jobs := newService(t)
	ctx := context.Background()

	_, err := service.RequestDeletion(ctx, "alice")
	require.NoError(t, err)

	first, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)

	result, err := service.RequestDeletion(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, deletion.StatusQueued, result.Status)

	second, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.RequestedAt, second.RequestedAt)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestService_RequestOnCompletedJobIsNoop(t *testing.T) {
	service, jobs := newService(t)
	ctx := context.Background()

	_, err := service.RequestDeletion(ctx, "alice")
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = jobs.Update(ctx, "alice", func(job *deletion.Job) error {
		job.Status = deletion.StatusCompleted
		job.CompletedAt = &now
		return nil
	})
	require.NoError(t, err)

	result, err := service.RequestDeletion(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, deletion.StatusCompleted, result.Status)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusCompleted, job.Status)
}

func TestService_RequestRequeuesFailedJob(t *testing.T) {
	service, jobs := newService(t)
	ctx := context.Background()

	_, err := service.RequestDeletion(ctx, "alice")
	require.NoError(t, err)

	_, err = jobs.Update(ctx, "alice", func(job *deletion.Job) error {
		job.Status = deletion.StatusFailed
		job.Attempt = 5
		job.LastError = "etcd unavailable"
		return nil
	})
	require.NoError(t, err)

	result, err := service.RequestDeletion(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, deletion.StatusQueued, result.Status)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusQueued, job.Status)
	assert.Equal(t, 0, job.Attempt)
}

func TestService_StatusNotRequested(t *testing.T) {
	service, _ := newService(t)

	result, err := service.Status(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusNotRequested, result.Status)
	assert.Equal(t, "alice", result.JobID)
	assert.Nil(t, result.UpdatedAt)
	assert.Nil(t, result.CompletedAt)
}

func TestService_StatusReflectsJob(t *testing.T) {
	service, jobs := newService(t)
	ctx := context.Background()

	_, err := service.RequestDeletion(ctx, "alice")
	require.NoError(t, err)

	_, err = jobs.Update(ctx, "alice", func(job *deletion.Job) error {
		job.Status = deletion.StatusFailed
		job.LastError = "etcd unavailable"
		return nil
	})
	require.NoError(t, err)

	result, err := service.Status(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusFailed, result.Status)
	assert.Equal(t, "etcd unavailable", result.LastError)
	require.NotNil(t, result.UpdatedAt)
}
