package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat signals a media type no extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEmptyExtraction signals that extraction produced no usable text.
	ErrEmptyExtraction = errors.New("empty extraction")
	// ErrDownloadFailure signals a failed file download from object storage.
	ErrDownloadFailure = errors.New("download failure")
	// ErrEmbeddingProvider signals a transient embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrEmbeddingRejected signals that the provider refused the request
	// itself (bad model, oversized input, invalid key). Retrying the same
	// request cannot succeed.
	ErrEmbeddingRejected = errors.New("embedding request rejected")
	// ErrIndexUnavailable signals that the vector index cannot be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrVectorWrite signals a failed write to the vector index.
	ErrVectorWrite = errors.New("vector write failure")
	// ErrSearchFailure signals a failed similarity search.
	ErrSearchFailure = errors.New("search failure")

	// ErrDocumentNotFound signals a missing document record.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrJobNotFound signals a missing ingestion job.
	ErrJobNotFound = errors.New("ingestion job not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit at the embedding provider.
	ErrRateLimited = errors.New("rate limited")
)

// StatusTransitionError reports a document status change that the
// lifecycle does not allow.
type StatusTransitionError struct {
	From, To string
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
