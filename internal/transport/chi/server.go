package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/domain"
	domdoc "github.com/civora/dokindex/internal/domain/document"
	domjob "github.com/civora/dokindex/internal/domain/job"
	healthuc "github.com/civora/dokindex/internal/usecase/health"
	"github.com/civora/dokindex/internal/usecase/retrieval"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeDocumentNotFound  = "document_not_found"
	codeJobNotFound       = "job_not_found"
	codeInvalidTransition = "invalid_status_transition"
	codeUnsupportedFormat = "unsupported_format"
	codeRateLimited       = "rate_limited"
	codeEmbeddingProvider = "embedding_provider_error"
	codeIndexUnavailable  = "index_unavailable"
	codeInternalError     = "internal_error"
)

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IngestQueue enqueues ingestion work and reports job state.
type IngestQueue interface {
	Enqueue(ctx context.Context, documentID string, kind domjob.Kind) (domjob.Job, error)
	Job(ctx context.Context, id string) (domjob.Job, error)
}

// DocumentReader reads document metadata.
type DocumentReader interface {
	Get(ctx context.Context, id string) (domdoc.Document, error)
}

// DocumentRemover deletes a document's vectors and metadata.
type DocumentRemover interface {
	Remove(ctx context.Context, documentID string) error
}

// Retriever answers retrieval queries.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Result, error)
}

// Server is the HTTP API for the ingestion and retrieval pipeline.
type Server struct {
	queue     IngestQueue
	documents DocumentReader
	remover   DocumentRemover
	retriever Retriever
	health    *healthuc.Service
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	queue IngestQueue,
	documents DocumentReader,
	remover DocumentRemover,
	retriever Retriever,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		queue:     queue,
		documents: documents,
		remover:   remover,
		retriever: retriever,
		health:    health,
		logger:    logger,
	}
}

// Routes mounts the API on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.GetHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/documents/{id}", func(r chi.Router) {
			r.Get("/", s.GetDocument)
			r.Delete("/", s.DeleteDocument)
			r.Post("/ingest", s.EnqueueIngest)
			r.Post("/retry", s.EnqueueRetry)
		})
		r.Get("/ingest-jobs/{id}", s.GetIngestJob)
		r.Post("/retrieve", s.Retrieve)
	})
}

// EnqueueIngest handles POST /v1/documents/{id}/ingest.
func (s *Server) EnqueueIngest(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, domjob.KindIngest)
}

// EnqueueRetry handles POST /v1/documents/{id}/retry.
func (s *Server) EnqueueRetry(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, domjob.KindRetry)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, kind domjob.Kind) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "document id is required")
		return
	}

	// Surface missing documents and bad lifecycle states at enqueue time
	// instead of inside a job the caller has to poll.
	doc, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	switch kind {
	case domjob.KindRetry:
		if doc.Status != domdoc.StatusError {
			s.handleDomainError(w, &domain.StatusTransitionError{
				From: string(doc.Status),
				To:   string(domdoc.StatusProcessing),
			})
			return
		}
	default:
		if doc.Status != domdoc.StatusProcessing {
			s.handleDomainError(w, &domain.StatusTransitionError{
				From: string(doc.Status),
				To:   string(domdoc.StatusProcessing),
			})
			return
		}
	}

	j, err := s.queue.Enqueue(r.Context(), id, kind)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, j)
}

// GetIngestJob handles GET /v1/ingest-jobs/{id}.
func (s *Server) GetIngestJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.queue.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// GetDocument handles GET /v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.remover.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// retrieveRequest is the POST /v1/retrieve body.
type retrieveRequest struct {
	OrganizationID string   `json:"organizationId"`
	UserID         string   `json:"userId"`
	Query          string   `json:"query"`
	Limit          int      `json:"limit,omitempty"`
	Visibilities   []string `json:"visibilities,omitempty"`
}

// Retrieve handles POST /v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "organizationId is required")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	visibilities := make([]domdoc.Visibility, 0, len(req.Visibilities))
	for _, raw := range req.Visibilities {
		v, err := domdoc.ParseVisibility(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
			return
		}
		visibilities = append(visibilities, v)
	}

	result, err := s.retriever.Retrieve(r.Context(), retrieval.Request{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Query:          req.Query,
		Limit:          req.Limit,
		Visibilities:   visibilities,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// --- Error mapping ---

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	var transErr *domain.StatusTransitionError
	if errors.As(err, &transErr) {
		writeError(w, http.StatusConflict, codeInvalidTransition, transErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, codeDocumentNotFound, domain.ErrDocumentNotFound.Error())
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, codeJobNotFound, domain.ErrJobNotFound.Error())
	case errors.Is(err, domain.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, codeUnsupportedFormat, domain.ErrUnsupportedFormat.Error())
	case errors.Is(err, domain.ErrVectorDimMismatch):
		writeError(w, http.StatusBadRequest, codeValidationFailed, domain.ErrVectorDimMismatch.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, codeRateLimited, domain.ErrRateLimited.Error())
	case errors.Is(err, domain.ErrEmbeddingProvider):
		writeError(w, http.StatusBadGateway, codeEmbeddingProvider, domain.ErrEmbeddingProvider.Error())
	case errors.Is(err, domain.ErrEmbeddingRejected):
		writeError(w, http.StatusBadGateway, codeEmbeddingProvider, domain.ErrEmbeddingRejected.Error())
	case errors.Is(err, domain.ErrIndexUnavailable), errors.Is(err, domain.ErrSearchFailure):
		writeError(w, http.StatusServiceUnavailable, codeIndexUnavailable, domain.ErrIndexUnavailable.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
