package deletion

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/store"
)

const maxIntakeConflicts = 8

// RequestResult is the outcome of an account-deletion request. Requests
// are idempotent: repeating one against a live or completed job is
// accepted without creating anything.
type RequestResult struct {
	Accepted bool
	Status   Status
	JobID    string
}

// StatusResult reports an account's deletion state. Accounts with no job
// record report StatusNotRequested.
type StatusResult struct {
	Status      Status
	JobID       string
	UpdatedAt   *time.Time
	CompletedAt *time.Time
	LastError   string
}

// Service is the request intake and status query surface over the job
// store. Workers observe new records through the store watch, so intake
// never talks to a worker directly.
type Service struct {
	logger *zap.Logger
	jobs   *JobStore
}

func NewService(logger *zap.Logger, jobs *JobStore) *Service {
	return &Service{logger: logger, jobs: jobs}
}

func (s *Service) RequestDeletion(ctx context.Context, ownerID string) (*RequestResult, error) {
	for i := 0; i < maxIntakeConflicts; i++ {
		job, err := s.jobs.Get(ctx, ownerID)
		if store.IsNotFoundError(err) {
			now := time.Now().UTC()
			created, err := s.jobs.Create(ctx, &Job{
				OwnerID:     ownerID,
				Status:      StatusQueued,
				RequestedAt: now,
				UpdatedAt:   now,
			})
			if err != nil {
				return nil, err
			}
			if !created {
				// lost the creation race, observe the winner's record
				continue
			}
			s.logger.Info("Queued account deletion", zap.String("ownerID", ownerID))
			return &RequestResult{Accepted: true, Status: StatusQueued, JobID: ownerID}, nil
		}
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case StatusQueued, StatusProcessing, StatusCompleted:
			return &RequestResult{Accepted: true, Status: job.Status, JobID: ownerID}, nil
		case StatusFailed:
			_, err := s.jobs.Update(ctx, ownerID, func(j *Job) error {
				if j.Status != StatusFailed {
					return NewConflictError("job no longer failed")
				}
				j.Status = StatusQueued
				j.Attempt = 0
				return nil
			})
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				continue
			}
			if err != nil {
				return nil, err
			}
			s.logger.Info("Requeued failed account deletion", zap.String("ownerID", ownerID))
			return &RequestResult{Accepted: true, Status: StatusQueued, JobID: ownerID}, nil
		default:
			return nil, errors.Errorf("job for %s in unexpected status %q", ownerID, job.Status)
		}
	}
	return nil, errors.Errorf("giving up deletion request for %s after repeated conflicts", ownerID)
}

func (s *Service) Status(ctx context.Context, ownerID string) (*StatusResult, error) {
	job, err := s.jobs.Get(ctx, ownerID)
	if store.IsNotFoundError(err) {
		return &StatusResult{Status: StatusNotRequested, JobID: ownerID}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		Status:      job.Status,
		JobID:       ownerID,
		CompletedAt: job.CompletedAt,
		LastError:   job.LastError,
	}
	updatedAt := job.UpdatedAt
	result.UpdatedAt = &updatedAt
	return result, nil
}
