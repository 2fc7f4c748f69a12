package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/civora/dokindex/internal/db"
	"github.com/civora/dokindex/internal/db/redis"
	"github.com/civora/dokindex/internal/domain"
	"github.com/civora/dokindex/internal/domain/document"
	"github.com/civora/dokindex/internal/domain/point"
)

// Indexed hash field names. TAG fields mirror the access-control payload;
// everything else is stored but not indexed.
const (
	fieldVector     = "vector"
	fieldOrgID      = "organization_id"
	fieldDocID      = "document_id"
	fieldVisibility = "visibility"
	fieldUploadedBy = "uploaded_by"
	fieldContent    = "content"
	fieldChunkIndex = "chunk_index"
	fieldFileName   = "file_name"
	fieldMediaType  = "media_type"
)

const deleteBatchSize = 500

// store is the consumer interface for the vector index (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchKeys(ctx context.Context, index, query string, offset, limit int) ([]string, int, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config holds vector index settings.
type Config struct {
	KeyPrefix       string // e.g. "dokindex:"
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Repo stores and searches document chunk vectors. Every search it issues
// carries a mandatory organization filter; there is no unfiltered path.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector repository.
func New(s store, cfg Config) *Repo {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "dokindex:"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	return &Repo{store: s, cfg: cfg}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string {
	return r.cfg.KeyPrefix + "chunks-idx"
}

func (r *Repo) chunkPrefix() string {
	return r.cfg.KeyPrefix + "chunks:"
}

func (r *Repo) chunkKey(pointID string) string {
	return r.chunkPrefix() + pointID
}

// EnsureCollection creates the chunk index if it does not exist. Safe to
// call on every startup.
func (r *Repo) EnsureCollection(ctx context.Context) error {
	def := db.NewIndex(r.IndexName()).
		Prefix(r.chunkPrefix()).
		Tag(fieldOrgID).
		Tag(fieldDocID).
		Tag(fieldVisibility).
		Tag(fieldUploadedBy).
		VectorHNSW(fieldVector, r.cfg.Dimensions, db.DistanceCosine, r.cfg.HNSWM, r.cfg.HNSWEFConstruct).
		Build()

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("%w: create chunk index: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Upsert writes points to the index. Deterministic keys make this
// idempotent per (document, chunk index).
func (r *Repo) Upsert(ctx context.Context, points []point.Point) error {
	if len(points) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(points))
	for i := range points {
		p := &points[i]
		if len(p.Vector) != r.cfg.Dimensions {
			return fmt.Errorf("%w: point %s has %d dimensions, index expects %d",
				domain.ErrVectorDimMismatch, p.ID, len(p.Vector), r.cfg.Dimensions)
		}
		items = append(items, db.HashSetItem{
			Key:    r.chunkKey(p.ID),
			Fields: pointFields(p),
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert %d points: %w", domain.ErrVectorWrite, len(points), err)
	}
	return nil
}

// Search runs a KNN query scoped to one organization. The organization
// filter is built here, inside the repository, so no caller can construct
// a cross-tenant query.
func (r *Repo) Search(ctx context.Context, organizationID string, params point.Query) ([]point.Scored, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("organization id is required")
	}
	if len(params.Vector) != r.cfg.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrVectorDimMismatch, len(params.Vector), r.cfg.Dimensions)
	}
	k := params.K
	if k <= 0 {
		k = 5
	}

	filter := db.TagFilter{
		Must: []db.TagMatch{{Key: fieldOrgID, Value: organizationID}},
	}
	for _, v := range params.Visibilities {
		if v == document.VisibilityPrivate {
			// Private chunks only match when the searcher is the uploader.
			if params.UploadedBy == "" {
				continue
			}
			filter.Any = append(filter.Any, []db.TagMatch{
				{Key: fieldVisibility, Value: string(v)},
				{Key: fieldUploadedBy, Value: params.UploadedBy},
			})
			continue
		}
		filter.Any = append(filter.Any, []db.TagMatch{{Key: fieldVisibility, Value: string(v)}})
	}

	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: r.IndexName(),
		Filter:    filter,
		Vector:    params.Vector,
		K:         k,
		ReturnFields: []string{
			fieldDocID, fieldOrgID, fieldContent, fieldChunkIndex,
			fieldFileName, fieldMediaType, fieldUploadedBy, fieldVisibility,
			"__vector_score",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: knn search: %w", domain.ErrSearchFailure, err)
	}

	scored := make([]point.Scored, 0, len(result.Entries))
	for _, entry := range result.Entries {
		scored = append(scored, entryToScored(entry, r.chunkPrefix()))
	}
	return scored, nil
}

// DeleteByDocument removes every point belonging to a document. Returns
// the number of deleted points.
func (r *Repo) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	query := db.TagMatch{Key: fieldDocID, Value: documentID}.Query()

	deleted := 0
	for {
		keys, _, err := r.store.SearchKeys(ctx, r.IndexName(), query, 0, deleteBatchSize)
		if err != nil {
			return deleted, fmt.Errorf("%w: list points of %s: %w", domain.ErrSearchFailure, documentID, err)
		}
		if len(keys) == 0 {
			return deleted, nil
		}

		n, err := r.store.DelMulti(ctx, keys)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("%w: delete points of %s: %w", domain.ErrVectorWrite, documentID, err)
		}
	}
}

// CountByDocument returns the number of indexed points for a document.
func (r *Repo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	query := db.TagMatch{Key: fieldDocID, Value: documentID}.Query()
	n, err := r.store.SearchCount(ctx, r.IndexName(), query)
	if err != nil {
		return 0, fmt.Errorf("%w: count points of %s: %w", domain.ErrSearchFailure, documentID, err)
	}
	return n, nil
}

func pointFields(p *point.Point) map[string]string {
	return map[string]string{
		fieldVector:     redis.VectorToBytes(p.Vector),
		fieldOrgID:      p.Payload.OrganizationID,
		fieldDocID:      p.Payload.DocumentID,
		fieldVisibility: string(p.Payload.Visibility),
		fieldUploadedBy: p.Payload.UploadedBy,
		fieldContent:    p.Payload.Content,
		fieldChunkIndex: strconv.Itoa(p.Payload.ChunkIndex),
		fieldFileName:   p.Payload.FileName,
		fieldMediaType:  p.Payload.MediaType,
	}
}

func entryToScored(entry db.SearchEntry, keyPrefix string) point.Scored {
	chunkIndex, _ := strconv.Atoi(entry.Fields[fieldChunkIndex])

	id := entry.Key
	if len(id) > len(keyPrefix) && id[:len(keyPrefix)] == keyPrefix {
		id = id[len(keyPrefix):]
	}

	return point.Scored{
		ID:    id,
		Score: entry.Score,
		Payload: point.Payload{
			DocumentID:     entry.Fields[fieldDocID],
			OrganizationID: entry.Fields[fieldOrgID],
			Content:        entry.Fields[fieldContent],
			ChunkIndex:     chunkIndex,
			FileName:       entry.Fields[fieldFileName],
			MediaType:      entry.Fields[fieldMediaType],
			UploadedBy:     entry.Fields[fieldUploadedBy],
			Visibility:     document.Visibility(entry.Fields[fieldVisibility]),
		},
	}
}
