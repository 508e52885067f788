package deletion

import "time"

type Status string

const (
	StatusNotRequested Status = "not_requested"
	StatusQueued       Status = "queued"
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Job tracks one account's deletion lifecycle. Exactly one job exists per
// owner (the job id is the owner id) and the record is never physically
// deleted: it stays behind as an audit record after the account is gone.
type Job struct {
	OwnerID        string     `json:"ownerId"`
	Status         Status     `json:"status"`
	RequestedAt    time.Time  `json:"requestedAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	Attempt        int        `json:"attempt"`
	WorkerID       string     `json:"workerId,omitempty"`
	LeaseExpiresAt *time.Time `json:"leaseExpiresAt,omitempty"`
}

// LeaseExpired reports whether the job's lease has lapsed; a job with no
// lease set counts as expired.
func (j *Job) LeaseExpired(now time.Time) bool {
	return j.LeaseExpiresAt == nil || j.LeaseExpiresAt.Before(now)
}

// HeldBy reports whether workerID currently holds a live lease on the job.
func (j *Job) HeldBy(workerID string, now time.Time) bool {
	return j.Status == StatusProcessing && j.WorkerID == workerID && !j.LeaseExpired(now)
}
