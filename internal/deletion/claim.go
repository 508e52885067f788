package deletion

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// errNotHolder aborts a lease mutation when the caller no longer owns the
// job; it never leaves this file.
type notHolderError struct{}

func (notHolderError) Error() string { return "lease not held" }

var errNotHolder = notHolderError{}

// ClaimManager provides lease-based mutual exclusion over a deletion job,
// built on the job store's transactional read-modify-write. At most one
// worker holds a live lease per account; a lease left behind by a crashed
// worker can be reclaimed once it expires.
type ClaimManager struct {
	logger *zap.Logger
	jobs   *JobStore
}

func NewClaimManager(logger *zap.Logger, jobs *JobStore) *ClaimManager {
	return &ClaimManager{
		logger: logger,
		jobs:   jobs,
	}
}

// Claim takes the job for workerID. It succeeds only when the job is queued,
// or processing under an expired lease (previous holder presumed crashed).
func (c *ClaimManager) Claim(ctx context.Context, ownerID, workerID string, lease time.Duration) (bool, error) {
	_, err := c.jobs.Update(ctx, ownerID, func(job *Job) error {
		now := time.Now().UTC()

		claimable := job.Status == StatusQueued ||
			(job.Status == StatusProcessing && job.LeaseExpired(now))
		if !claimable {
			return errNotHolder
		}

		expires := now.Add(lease)
		job.Status = StatusProcessing
		job.WorkerID = workerID
		job.LeaseExpiresAt = &expires
		return nil
	})
	if err == errNotHolder {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	c.logger.Debug("Claimed deletion job",
		zap.String("ownerID", ownerID),
		zap.String("workerID", workerID))

	return true, nil
}

// Extend renews the lease; it succeeds only while workerID still holds it.
func (c *ClaimManager) Extend(ctx context.Context, ownerID, workerID string, lease time.Duration) (bool, error) {
	_, err := c.jobs.Update(ctx, ownerID, func(job *Job) error {
		now := time.Now().UTC()
		if !job.HeldBy(workerID, now) {
			return errNotHolder
		}

		expires := now.Add(lease)
		job.LeaseExpiresAt = &expires
		return nil
	})
	if err == errNotHolder {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Release moves the job to its next status and clears the lease. next must
// be queued (transient retry, increments the attempt counter), failed
// (attempts exhausted or permanent error) or completed. When the caller no
// longer holds the lease this is a silent no-op: another worker owns the
// job and its state must not be corrupted.
func (c *ClaimManager) Release(ctx context.Context, ownerID, workerID string, next Status, lastError string) error {
	_, err := c.jobs.Update(ctx, ownerID, func(job *Job) error {
		if job.Status != StatusProcessing || job.WorkerID != workerID {
			return errNotHolder
		}

		job.Status = next
		job.WorkerID = ""
		job.LeaseExpiresAt = nil

		switch next {
		case StatusQueued:
			job.Attempt++
			job.LastError = lastError
		case StatusFailed:
			job.LastError = lastError
		case StatusCompleted:
			now := time.Now().UTC()
			job.CompletedAt = &now
			job.LastError = ""
		}
		return nil
	})
	if err == errNotHolder {
		c.logger.Warn("Lease lost before release, leaving job untouched",
			zap.String("ownerID", ownerID),
			zap.String("workerID", workerID))
		return nil
	}
	return err
}
