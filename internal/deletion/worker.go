package deletion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/config"
	"github.com/nidoapp/nido-api/internal/deletion/graph"
	internalerrors "github.com/nidoapp/nido-api/internal/errors"
	"github.com/nidoapp/nido-api/internal/store"
)

// ErrLeaseLost marks a run aborted because the worker's lease expired and
// the job is (or soon will be) someone else's. The job record is left for
// the new holder, never released.
var ErrLeaseLost = errors.New("deletion lease lost")

const jobQueueSize = 256

// Worker drives queued account-deletion jobs through the phased plan. A
// watcher picks up fresh requests promptly; a poll ticker recovers jobs
// left behind by crashed workers once their leases expire.
type Worker struct {
	logger   *zap.Logger
	cfg      config.DeletionConfig
	client   store.ClientWrapper
	jobs     *JobStore
	claims   *ClaimManager
	executor *Executor
	workerID string
	phases   []graph.Phase
	queue    chan string
}

func NewWorker(
	logger *zap.Logger,
	cfg *config.Config,
	client store.ClientWrapper,
	jobs *JobStore,
	claims *ClaimManager,
	executor *Executor,
) (*Worker, error) {
	phases, err := graph.Plan()
	if err != nil {
		return nil, err
	}
	return &Worker{
		logger:   logger,
		cfg:      cfg.Deletion,
		client:   client,
		jobs:     jobs,
		claims:   claims,
		executor: executor,
		workerID: uuid.NewString(),
		phases:   phases,
		queue:    make(chan string, jobQueueSize),
	}, nil
}

// Start runs the worker until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting deletion worker",
		zap.String("workerID", w.workerID),
		zap.Int("consumers", w.cfg.Workers))

	go w.watchJobs(ctx)
	go w.pollJobs(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		go w.consume(ctx)
	}

	<-ctx.Done()
	return nil
}

// watchJobs enqueues owners as soon as their job record is written or
// flipped back to queued.
func (w *Worker) watchJobs(ctx context.Context) {
	events, err := w.client.Watch(ctx, JobKeyPrefix())
	if err != nil {
		w.logger.Error("Failed to watch job records, relying on polls", zap.Error(err))
		return
	}
	for event := range events {
		if event.Deleted {
			continue
		}
		var job Job
		if err := json.Unmarshal(event.Value, &job); err != nil {
			w.logger.Error("Dropping unreadable job event", zap.String("key", event.Key), zap.Error(err))
			continue
		}
		if job.Status == StatusQueued {
			w.enqueue(job.OwnerID)
		}
	}
}

// pollJobs periodically sweeps the job records for work the watcher missed:
// jobs queued before this worker started and processing jobs whose holder
// died.
func (w *Worker) pollJobs(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		from := ""
		for {
			jobs, more, next, err := w.jobs.List(ctx, w.cfg.PageSize, from)
			if err != nil {
				w.logger.Error("Failed to list deletion jobs", zap.Error(err))
				break
			}
			now := time.Now().UTC()
			for _, job := range jobs {
				switch {
				case job.Status == StatusQueued:
					w.enqueue(job.OwnerID)
				case job.Status == StatusProcessing && job.LeaseExpired(now):
					w.enqueue(job.OwnerID)
				}
			}
			if !more {
				break
			}
			from = next
		}
	}
}

func (w *Worker) enqueue(ownerID string) {
	select {
	case w.queue <- ownerID:
	default:
		// the poll sweep will pick it up again
		w.logger.Warn("Deletion queue full, dropping signal", zap.String("ownerID", ownerID))
	}
}

func (w *Worker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ownerID := <-w.queue:
			w.process(ctx, ownerID)
		}
	}
}

func (w *Worker) process(ctx context.Context, ownerID string) {
	claimed, err := w.claims.Claim(ctx, ownerID, w.workerID, w.cfg.LeaseDuration)
	if err != nil {
		w.logger.Error("Failed to claim deletion job", zap.String("ownerID", ownerID), zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	logger := w.logger.With(zap.String("ownerID", ownerID), zap.String("workerID", w.workerID))
	logger.Info("Claimed deletion job")

	extend := func(ctx context.Context) error {
		held, err := w.claims.Extend(ctx, ownerID, w.workerID, w.cfg.LeaseDuration)
		if err != nil {
			return err
		}
		if !held {
			return ErrLeaseLost
		}
		return nil
	}

	runErr := w.run(ctx, ownerID, extend)
	if runErr == nil {
		if err := w.claims.Release(ctx, ownerID, w.workerID, StatusCompleted, ""); err != nil {
			logger.Error("Failed to complete deletion job", zap.Error(err))
			return
		}
		jobsProcessed.WithLabelValues("completed").Inc()
		logger.Info("Completed deletion job")
		return
	}

	if errors.Is(runErr, ErrLeaseLost) {
		jobsProcessed.WithLabelValues("lease_lost").Inc()
		logger.Info("Abandoning deletion job, lease lost")
		return
	}

	w.fail(ctx, logger, ownerID, runErr)
}

func (w *Worker) run(ctx context.Context, ownerID string, extend ExtendFunc) error {
	for i, phase := range w.phases {
		if err := w.executor.RunPhase(ctx, ownerID, phase, extend); err != nil {
			return errors.Wrapf(err, "phase %d", i)
		}
	}
	return nil
}

// fail decides between another attempt and the terminal failed state. Only
// transient errors earn a requeue, and only while attempts remain.
func (w *Worker) fail(ctx context.Context, logger *zap.Logger, ownerID string, runErr error) {
	job, err := w.jobs.Get(ctx, ownerID)
	if err != nil {
		logger.Error("Failed to read job after run error", zap.Error(err))
		return
	}

	if internalerrors.IsTransient(runErr) && job.Attempt+1 < w.cfg.MaxAttempts {
		if err := w.claims.Release(ctx, ownerID, w.workerID, StatusQueued, runErr.Error()); err != nil {
			logger.Error("Failed to requeue deletion job", zap.Error(err))
			return
		}
		jobsProcessed.WithLabelValues("requeued").Inc()
		logger.Warn("Requeued deletion job after transient error",
			zap.Int("attempt", job.Attempt+1),
			zap.Error(runErr))
		return
	}

	if err := w.claims.Release(ctx, ownerID, w.workerID, StatusFailed, runErr.Error()); err != nil {
		logger.Error("Failed to mark deletion job failed", zap.Error(err))
		return
	}
	jobsProcessed.WithLabelValues("failed").Inc()
	logger.Error("Deletion job failed", zap.Error(runErr))
}
