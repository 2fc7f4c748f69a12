package document

import (
	"fmt"
	"strings"
	"time"
)

// Status is the document processing lifecycle state.
type Status string

// Lifecycle states. Transitions are restricted: see CanTransition.
const (
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusError      Status = "ERROR"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusProcessing, StatusReady, StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// READY never goes back to PROCESSING implicitly; ERROR -> PROCESSING is the
// explicit retry path.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusProcessing:
		return next == StatusReady || next == StatusError
	case StatusError:
		return next == StatusProcessing
	default:
		return false
	}
}

// Visibility controls which users' queries may retrieve a document's chunks.
type Visibility string

const (
	// VisibilityGlobal makes chunks retrievable by the whole organization.
	VisibilityGlobal Visibility = "GLOBAL"
	// VisibilityUnit restricts chunks to the uploader's organizational unit.
	VisibilityUnit Visibility = "UNIT"
	// VisibilityPrivate restricts chunks to the uploader.
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility validates a raw visibility string.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToUpper(s)); v {
	case VisibilityGlobal, VisibilityUnit, VisibilityPrivate:
		return v, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// DefaultVisibilitySet is the visibility filter applied to retrieval when the
// caller does not override it. UNIT is included without checking the caller's
// unit membership: the upstream platform resolves org charts and is expected
// to pass an explicit visibility set when it needs a narrower scope.
func DefaultVisibilitySet() []Visibility {
	return []Visibility{VisibilityGlobal, VisibilityUnit}
}

// Stats holds the processing statistics recorded on a document after a
// successful ingestion run.
type Stats struct {
	TextLength      int     `json:"textLength"`
	PageCount       int     `json:"pageCount,omitempty"`
	ChunkCount      int     `json:"chunkCount"`
	EmbeddingTokens int     `json:"embeddingTokens"`
	EmbeddingCost   float64 `json:"embeddingCost"`
	VectorCount     int     `json:"vectorCount"`
}

// Document is the pipeline's view of a document metadata record. The record
// itself lives in the platform's metadata store; the ingestion coordinator is
// its only writer here.
type Document struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organizationId"`
	UploadedBy      string     `json:"uploadedBy"`
	FileName        string     `json:"fileName"`
	MediaType       string     `json:"mediaType"`
	FileURL         string     `json:"fileUrl"`
	Visibility      Visibility `json:"visibility"`
	Status          Status     `json:"status"`
	EmbeddingModel  string     `json:"embeddingModel,omitempty"`
	ProcessingError string     `json:"processingError,omitempty"`
	Stats           Stats      `json:"stats"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Validate checks the fields ingestion depends on.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if d.OrganizationID == "" {
		return fmt.Errorf("organization id is required")
	}
	if d.FileURL == "" {
		return fmt.Errorf("file url is required")
	}
	if _, err := ParseVisibility(string(d.Visibility)); err != nil {
		return err
	}
	return nil
}
