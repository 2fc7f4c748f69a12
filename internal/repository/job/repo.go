package job

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/civora/dokindex/internal/domain"
	domjob "github.com/civora/dokindex/internal/domain/job"
)

// store is the consumer interface for job state (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Repo persists ingestion job state as hashes so job status survives the
// HTTP request that enqueued it.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a job repository.
func New(s store, keyPrefix string) *Repo {
	if keyPrefix == "" {
		keyPrefix = "dokindex:"
	}
	return &Repo{store: s, keyPrefix: keyPrefix}
}

func (r *Repo) jobKey(id string) string {
	return r.keyPrefix + "jobs:" + id
}

// Put writes the full job record.
func (r *Repo) Put(ctx context.Context, j *domjob.Job) error {
	fields := map[string]string{
		"document_id": j.DocumentID,
		"kind":        string(j.Kind),
		"state":       string(j.State),
		"error":       j.Error,
		"enqueued_at": strconv.FormatInt(j.EnqueuedAt.UnixMilli(), 10),
	}
	if !j.StartedAt.IsZero() {
		fields["started_at"] = strconv.FormatInt(j.StartedAt.UnixMilli(), 10)
	}
	if !j.FinishedAt.IsZero() {
		fields["finished_at"] = strconv.FormatInt(j.FinishedAt.UnixMilli(), 10)
	}

	if err := r.store.HSet(ctx, r.jobKey(j.ID), fields); err != nil {
		return fmt.Errorf("hset %s: %w", r.jobKey(j.ID), err)
	}
	return nil
}

// Get returns a job by id.
func (r *Repo) Get(ctx context.Context, id string) (domjob.Job, error) {
	fields, err := r.store.HGetAll(ctx, r.jobKey(id))
	if err != nil {
		return domjob.Job{}, fmt.Errorf("hgetall %s: %w", r.jobKey(id), err)
	}
	if len(fields) == 0 {
		return domjob.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}

	state, err := domjob.ParseState(fields["state"])
	if err != nil {
		return domjob.Job{}, fmt.Errorf("job %s: %w", id, err)
	}

	return domjob.Job{
		ID:         id,
		DocumentID: fields["document_id"],
		Kind:       domjob.Kind(fields["kind"]),
		State:      state,
		Error:      fields["error"],
		EnqueuedAt: parseMilli(fields["enqueued_at"]),
		StartedAt:  parseMilli(fields["started_at"]),
		FinishedAt: parseMilli(fields["finished_at"]),
	}, nil
}

// Delete removes a job record.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.jobKey(id)); err != nil {
		return fmt.Errorf("del %s: %w", r.jobKey(id), err)
	}
	return nil
}

func parseMilli(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
