package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	domdoc "github.com/civora/dokindex/internal/domain/document"
	domjob "github.com/civora/dokindex/internal/domain/job"
	"github.com/civora/dokindex/internal/metrics"
)

// runner is the part of the coordinator the queue drives.
type runner interface {
	Ingest(ctx context.Context, documentID string) (domdoc.Document, error)
	Retry(ctx context.Context, documentID string) (domdoc.Document, error)
}

// Queue runs ingestion jobs on a bounded worker pool. Job state is
// persisted so callers can poll the outcome after the enqueue request
// returns.
type Queue struct {
	pool    *ants.Pool
	runner  runner
	jobs    JobStore
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// QueueConfig holds worker pool settings.
type QueueConfig struct {
	Workers    int
	JobTimeout time.Duration
}

// NewQueue creates a job queue with the given worker count.
func NewQueue(r runner, jobs JobStore, cfg QueueConfig, logger *zap.Logger) (*Queue, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	pool, err := ants.NewPool(workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Queue{
		pool:    pool,
		runner:  r,
		jobs:    jobs,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Enqueue persists a PENDING job and schedules it on the pool. The
// returned job carries the id to poll.
func (q *Queue) Enqueue(ctx context.Context, documentID string, kind domjob.Kind) (domjob.Job, error) {
	j := domjob.Job{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Kind:       kind,
		State:      domjob.StatePending,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.jobs.Put(ctx, &j); err != nil {
		return domjob.Job{}, fmt.Errorf("persist job: %w", err)
	}

	metrics.IngestQueueDepth.Inc()

	q.wg.Add(1)
	if err := q.pool.Submit(func() {
		defer q.wg.Done()
		q.execute(j)
	}); err != nil {
		q.wg.Done()
		metrics.IngestQueueDepth.Dec()
		j.State = domjob.StateFailed
		j.Error = "queue unavailable"
		j.FinishedAt = time.Now().UTC()
		_ = q.jobs.Put(ctx, &j)
		return domjob.Job{}, fmt.Errorf("submit job: %w", err)
	}

	return j, nil
}

// Job returns the persisted state of a job.
func (q *Queue) Job(ctx context.Context, id string) (domjob.Job, error) {
	return q.jobs.Get(ctx, id)
}

// Release stops accepting work and blocks until every submitted job has
// recorded its outcome. Pool release alone does not drain in-flight work.
func (q *Queue) Release() {
	q.pool.Release()
	q.wg.Wait()
}

func (q *Queue) execute(j domjob.Job) {
	defer metrics.IngestQueueDepth.Dec()

	// The enqueueing request's context is gone by now; jobs get their own.
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	j.State = domjob.StateRunning
	j.StartedAt = time.Now().UTC()
	if err := q.jobs.Put(ctx, &j); err != nil {
		q.logger.Error("failed to mark job running",
			zap.String("job_id", j.ID), zap.Error(err))
	}

	var err error
	switch j.Kind {
	case domjob.KindRetry:
		_, err = q.runner.Retry(ctx, j.DocumentID)
	default:
		_, err = q.runner.Ingest(ctx, j.DocumentID)
	}

	j.FinishedAt = time.Now().UTC()
	if err != nil {
		j.State = domjob.StateFailed
		j.Error = err.Error()
	} else {
		j.State = domjob.StateDone
	}

	if perr := q.jobs.Put(ctx, &j); perr != nil {
		q.logger.Error("failed to record job outcome",
			zap.String("job_id", j.ID),
			zap.String("state", string(j.State)),
			zap.Error(perr),
		)
	}
}
