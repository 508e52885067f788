package deletion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	internalerrors "github.com/nidoapp/nido-api/internal/errors"
	"github.com/nidoapp/nido-api/internal/store"
)

const jobKeyPrefix = "/jobs/account-deletion/"

// how many revision conflicts one read-modify-write tolerates before
// giving up; conflicts only happen while another mutator is racing
const maxUpdateConflicts = 16

// JobKeyPrefix is the key range the worker watches for new jobs.
func JobKeyPrefix() string {
	return jobKeyPrefix
}

func jobKey(ownerID string) string {
	return jobKeyPrefix + ownerID
}

// JobStore persists one Job per account and provides the transactional
// read-modify-write every status transition goes through.
type JobStore struct {
	logger *zap.Logger
	client store.ClientWrapper
}

func NewJobStore(logger *zap.Logger, client store.ClientWrapper) *JobStore {
	return &JobStore{
		logger: logger,
		client: client,
	}
}

// Get returns the job for an owner, or store.NotFoundError when no deletion
// was ever requested.
func (s *JobStore) Get(ctx context.Context, ownerID string) (*Job, error) {
	data, _, err := s.client.Get(ctx, jobKey(ownerID))
	if err != nil {
		return nil, err
	}
	return unmarshalJob(data)
}

// Create persists a new job only if none exists yet. The bool reports
// whether this call won the creation race.
func (s *JobStore) Create(ctx context.Context, job *Job) (bool, error) {
	data, err := marshalJob(job)
	if err != nil {
		return false, err
	}
	return s.client.PutIfAbsent(ctx, jobKey(job.OwnerID), data)
}

// ConflictError signals that a mutation observed a job state it cannot act
// on; returning it from an Update mutation aborts without a write.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// Update atomically transforms the stored job: it reads the record with its
// revision, applies mutate to a copy, and writes back only if the revision
// is unchanged, retrying the whole cycle on interference. mutate returning
// an error aborts without a write.
func (s *JobStore) Update(ctx context.Context, ownerID string, mutate func(*Job) error) (*Job, error) {
	key := jobKey(ownerID)

	for i := 0; i < maxUpdateConflicts; i++ {
		data, revision, err := s.client.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		job, err := unmarshalJob(data)
		if err != nil {
			return nil, err
		}

		if err := mutate(job); err != nil {
			return nil, err
		}
		job.UpdatedAt = time.Now().UTC()

		updated, err := marshalJob(job)
		if err != nil {
			return nil, err
		}

		ok, err := s.client.PutIfRevision(ctx, key, updated, revision)
		if err != nil {
			return nil, err
		}
		if ok {
			return job, nil
		}

		s.logger.Debug("Job update lost revision race, retrying",
			zap.String("ownerID", ownerID))
	}

	return nil, errors.Errorf("job %s: too many concurrent updates", ownerID)
}

// List returns one page of all job records, for the worker's recovery poll.
func (s *JobStore) List(ctx context.Context, pageSize int, from string) ([]*Job, bool, string, error) {
	batch, err := s.client.List(ctx, store.Paging{Prefix: jobKeyPrefix, From: from, Limit: pageSize})
	if err != nil {
		return nil, false, "", err
	}

	var jobs []*Job
	next := from
	for _, kv := range batch.KVs {
		job, err := unmarshalJob(kv.Value)
		if err != nil {
			return nil, false, "", err
		}
		jobs = append(jobs, job)
		next = kv.Key
	}

	return jobs, batch.More, next, nil
}

func marshalJob(job *Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", internalerrors.NewMarshalingError("failed to marshal deletion job")
	}
	return string(data), nil
}

func unmarshalJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, internalerrors.NewMarshalingError("failed to unmarshal deletion job")
	}
	return &job, nil
}
