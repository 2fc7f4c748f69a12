package dokindex

import "time"

// Document mirrors the service's document metadata record.
type Document struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organizationId"`
	UploadedBy      string    `json:"uploadedBy"`
	FileName        string    `json:"fileName"`
	MediaType       string    `json:"mediaType"`
	FileURL         string    `json:"fileUrl"`
	Visibility      string    `json:"visibility"`
	Status          string    `json:"status"`
	EmbeddingModel  string    `json:"embeddingModel,omitempty"`
	ProcessingError string    `json:"processingError,omitempty"`
	Stats           Stats     `json:"stats"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Stats holds ingestion statistics for a processed document.
type Stats struct {
	TextLength      int     `json:"textLength"`
	PageCount       int     `json:"pageCount,omitempty"`
	ChunkCount      int     `json:"chunkCount"`
	EmbeddingTokens int     `json:"embeddingTokens"`
	EmbeddingCost   float64 `json:"embeddingCost"`
	VectorCount     int     `json:"vectorCount"`
}

// Job states.
const (
	JobPending = "PENDING"
	JobRunning = "RUNNING"
	JobDone    = "DONE"
	JobFailed  = "FAILED"
)

// Job is an asynchronous ingestion job.
type Job struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Kind       string    `json:"kind"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j Job) Terminal() bool {
	return j.State == JobDone || j.State == JobFailed
}

// RetrieveRequest is the retrieval query.
type RetrieveRequest struct {
	OrganizationID string   `json:"organizationId"`
	UserID         string   `json:"userId,omitempty"`
	Query          string   `json:"query"`
	Limit          int      `json:"limit,omitempty"`
	Visibilities   []string `json:"visibilities,omitempty"`
}

// Source is a retrieved chunk with provenance.
type Source struct {
	DocumentID string  `json:"documentId"`
	FileName   string  `json:"fileName"`
	ChunkIndex int     `json:"chunkIndex"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// RetrieveResult is the retrieval response.
type RetrieveResult struct {
	Sources      []Source `json:"sources"`
	ContextBlock string   `json:"contextBlock"`
	QueryTokens  int      `json:"queryTokens"`
	Degraded     bool     `json:"degraded"`
}

// HealthReport is the service health response.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
