package job

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of an ingestion job.
type State string

// Job states. A job is terminal once DONE or FAILED.
const (
	StatePending State = "PENDING"
	StateRunning State = "RUNNING"
	StateDone    State = "DONE"
	StateFailed  State = "FAILED"
)

// ParseState validates a raw state string.
func ParseState(s string) (State, error) {
	switch st := State(strings.ToUpper(s)); st {
	case StatePending, StateRunning, StateDone, StateFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown job state %q", s)
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Kind distinguishes fresh ingestion from explicit retries.
type Kind string

const (
	KindIngest Kind = "INGEST"
	KindRetry  Kind = "RETRY"
)

// Job is one queued ingestion run for a document. Jobs survive in the
// store so their outcome can be polled after the HTTP request returns.
type Job struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Kind       Kind      `json:"kind"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}
