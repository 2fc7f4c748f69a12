package point

import (
	"fmt"

	"github.com/civora/dokindex/internal/domain/document"
)

// ID returns the deterministic point id for a document chunk. Re-ingesting a
// document overwrites the same ids instead of accumulating duplicates.
func ID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", documentID, chunkIndex)
}

// Payload is the metadata stored alongside each vector. OrganizationID is
// always present and indexed; it is the tenant isolation key.
type Payload struct {
	DocumentID     string
	OrganizationID string
	Content        string
	ChunkIndex     int
	FileName       string
	MediaType      string
	UploadedBy     string
	Visibility     document.Visibility
	Metadata       map[string]string
}

// Point is the unit stored in the vector index.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// New validates and creates a Point with a deterministic id.
func New(vector []float32, payload Payload) (Point, error) {
	if payload.DocumentID == "" {
		return Point{}, fmt.Errorf("payload document id is required")
	}
	if payload.OrganizationID == "" {
		return Point{}, fmt.Errorf("payload organization id is required")
	}
	if len(vector) == 0 {
		return Point{}, fmt.Errorf("vector is required")
	}
	if _, err := document.ParseVisibility(string(payload.Visibility)); err != nil {
		return Point{}, err
	}
	return Point{
		ID:      ID(payload.DocumentID, payload.ChunkIndex),
		Vector:  vector,
		Payload: payload,
	}, nil
}

// Scored is a single search hit: a point id with its cosine similarity and a
// read-only projection of the stored payload.
type Scored struct {
	ID      string
	Score   float64
	Payload Payload
}

// Query is a KNN request against the point index. The organization scope is
// deliberately not part of the query; repositories take it as a separate
// required argument.
type Query struct {
	Vector       []float32
	K            int
	Visibilities []document.Visibility
	UploadedBy   string // binds PRIVATE visibility to the requesting user
}
