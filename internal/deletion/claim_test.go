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

func newClaimManager(t *testing.T) (*deletion.ClaimManager, *deletion.JobStore) {
	t.Helper()
	jobs, _ := newJobStore(t)
	return deletion.NewClaimManager(zap.NewNop(), jobs), jobs
}

func TestClaimManager_ClaimQueuedJob(t *testing.T) {
	claims, jobs := newClaimManager(t)
	ctx := context.Background()

	_, err := jobs.Create(ctx, queuedJob("alice"))
	require.NoError(t, err)

	claimed, err := claims.Claim(ctx, "alice", "w1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusProcessing, job.Status)
	assert.Equal(t, "w1", job.WorkerID)
	require.NotNil(t, job.LeaseExpiresAt)
	assert.True(t, job.LeaseExpiresAt.After(time.Now().UTC()))
}

func TestClaimManager_SecondClaimRejected(t *testing.T) {
	claims, jobs := newClaimManager(t)
	ctx := context.Background()

	_, err := jobs.Create(ctx, queuedJob("alice"))
	require.NoError(t, err)

	claimed, err := claims.Claim(ctx, "alice", "w1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = claims.Claim(ctx, "alice", "w2", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "w1", job.WorkerID)
}

func TestClaimManager_ExpiredLeaseReclaimable(t *testing.T) {
	claims, jobs := newClaimManager(t)
	ctx := context.Background()

	_, err := jobs.Create(ctx, queuedJob("alice"))
	require.NoError(t, err)

	// a crashed worker left the job processing with a lapsed lease
	expired := time.Now().UTC().Add(-time.Minute)
	_, err = jobs.Update(ctx, "alice", func(job *deletion.Job) error {
		job.Status = deletion.StatusProcessing
		job.WorkerID = "dead"
		job.LeaseExpiresAt = &expired
		return nil
	})
	require.NoError(t, err)

	claimed, err := claims.Claim(ctx, "alice", "w2", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "w2", job.WorkerID)
}

func TestClaimManager_Extend(t *testing.T) {
	claims, jobs := newClaimManager(t)
	ctx := context.Background()

	_, err := jobs.Create(ctx, queuedJob("alice"))
	require.NoError(t, err)

	_, err = claims.Claim(ctx, "alice", "w1", time.Minute)
	require.NoError(t, err)

	held, err := claims.Extend(ctx, "alice", "w1", time.Minute)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = claims.Extend(ctx, "alice", "w2", time.Minute)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestClaimManager_ReleaseQueuedIncrementsAttempt(t *testing.T) {
	claims, jobs := newClaimManager(t)
	ctx := context.Background()

	_, err := jobs.Create(ctx, queuedJob("alice"))
	require.NoError(t, err)

	_, err = claims.Claim(ctx, "alice", "w1", time.Minute)
	require.NoError(t, err)

	err = claims.Release(ctx, "alice", "w1", deletion.StatusQueued, "etcd unavailable")
	require.NoError(t, err)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusQueued, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, "etcd unavailable", job.LastError)
	assert.Empty(t, job.WorkerID)
	assert.Nil(t, job.LeaseExpiresAt)
}

func TestClaimManager_ReleaseCompleted(t *testing.T) {
	claims, jobs := newClaimManager(t)
	ctx := context.Background()

	_, err := jobs.Create(ctx, queuedJob("alice"))
	require.NoError(t, err)

	_, err = claims.Claim(ctx, "alice", "w1", time.Minute)
	require.NoError(t, err)

	err = claims.Release(ctx, "alice", "w1", deletion.StatusCompleted, "")
	require.NoError(t, err)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.LastError)
}

func TestClaimManager_ReleaseByNonHolderIsNoop(t *testing.T) {
	claims, jobs := newClaimManager(t)
	ctx := context.Background()

	_, err := jobs.Create(ctx, queuedJob("alice"))
	require.NoError(t, err)

	_, err = claims.Claim(ctx, "alice", "w1", time.Minute)
	require.NoError(t, err)

	err = claims.Release(ctx, "alice", "w2", deletion.StatusFailed, "boom")
	require.NoError(t, err)

	job, err := jobs.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusProcessing, job.Status)
	assert.Equal(t, "w1", job.WorkerID)
}
