package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	ragcore "github.com/santhosh0997/Multimodal-Rag-System"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retrieval"
)

// Engine is the part of ragcore.Engine the handlers use.
type Engine interface {
	Ingest(ctx context.Context, doc *core.Document) (*core.IngestOutcome, error)
	IngestAll(ctx context.Context, docs []*core.Document) ([]*core.IngestOutcome, error)
	Outcome(ctx context.Context, documentID string) (*core.IngestOutcome, error)
	RetrieveWith(ctx context.Context, q *core.Query, opts ragcore.RetrieveOptions) (*core.RetrievalResult, error)
	Stats(ctx context.Context) (*ragcore.Stats, error)
}

var _ Engine = (*ragcore.Engine)(nil)

// MaxBatchSize caps the documents accepted by one batch request.
const MaxBatchSize = 256

// Handler serves the ingestion and retrieval endpoints over an Engine.
type Handler struct {
	engine Engine
	budget retrieval.Budget
}

// NewHandler returns a Handler that applies budget when a request sets no limits.
func NewHandler(engine Engine, budget retrieval.Budget) *Handler {
	return &Handler{engine: engine, budget: budget}
}

// DocumentRequest is the JSON body of a single document ingest.
type DocumentRequest struct {
	ID       string            `json:"id"`
	Origin   string            `json:"origin"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (d DocumentRequest) document() *core.Document {
	return &core.Document{ID: d.ID, Origin: d.Origin, Text: d.Text, Metadata: d.Metadata}
}

// BatchRequest ingests up to MaxBatchSize documents in one call.
type BatchRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

// BatchResponse holds one outcome per requested document, in request order.
type BatchResponse struct {
	Outcomes []*core.IngestOutcome `json:"outcomes"`
	Failed   int                   `json:"failed"`
}

// FilterRequest restricts evidence to the named documents or metadata values.
type FilterRequest struct {
	DocumentIDs []string          `json:"document_ids,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RetrieveRequest is a question plus optional seed entities, limits and filter.
// Nil limits fall back to the server budget.
type RetrieveRequest struct {
	Query       string         `json:"query"`
	Entities    []string       `json:"entities,omitempty"`
	MaxEvidence *int           `json:"max_evidence,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	Filter      *FilterRequest `json:"filter,omitempty"`
}

// budget overlays the request limits on the server default.
func (r RetrieveRequest) budget(defaults retrieval.Budget) retrieval.Budget {
	b := defaults
	if r.MaxEvidence != nil {
		b.MaxEvidence = *r.MaxEvidence
	}
	if r.MaxTokens != nil {
		b.MaxTokens = *r.MaxTokens
	}
	return b
}

func (r RetrieveRequest) filter() *core.Filter {
	if r.Filter == nil || (len(r.Filter.DocumentIDs) == 0 && len(r.Filter.Metadata) == 0) {
		return nil
	}
	return &core.Filter{DocumentIDs: r.Filter.DocumentIDs, Metadata: r.Filter.Metadata}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, core.ReasonInvalidInput, "invalid request body")
		return false
	}
	return true
}

// Ingest handles POST /v1/documents. A document that fails ingestion is
// answered with 422 and its outcome.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decode(w, r, &req) {
		return
	}

	outcome, err := h.engine.Ingest(r.Context(), req.document())
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, core.ErrInvalidDocument) || outcome == nil {
			status = StatusFor(err)
		}
		JSON(w, status, ErrorResponse{Error: err.Error(), Reason: core.Reason(err), Data: outcome})
		return
	}

	status := http.StatusCreated
	if outcome.Skipped {
		status = http.StatusOK
	}
	Success(w, status, outcome)
}

// IngestBatch handles POST /v1/documents/batch. Per-document failures are
// reported in the outcomes, not as the response status.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		Error(w, http.StatusBadRequest, core.ReasonInvalidInput, "documents is required")
		return
	}
	if len(req.Documents) > MaxBatchSize {
		Error(w, http.StatusBadRequest, core.ReasonInvalidInput, "too many documents")
		return
	}

	docs := make([]*core.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.document()
	}

	outcomes, err := h.engine.IngestAll(r.Context(), docs)
	if err != nil && errors.Is(err, context.Canceled) {
		HandleError(w, err)
		return
	}

	resp := BatchResponse{Outcomes: outcomes}
	for _, o := range outcomes {
		if o != nil && o.State == core.StateFailed {
			resp.Failed++
		}
	}
	Success(w, http.StatusOK, resp)
}

// Outcome handles GET /v1/documents/{id}.
func (h *Handler) Outcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, err := h.engine.Outcome(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, http.StatusOK, outcome)
}

// Retrieve handles POST /v1/retrieve. It answers 503 when neither retrieval
// path produced anything.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		Error(w, http.StatusBadRequest, core.ReasonInvalidInput, "query is required")
		return
	}

	q := &core.Query{
		ID:       middlewareRequestID(r),
		Text:     req.Query,
		Entities: req.Entities,
	}
	result, err := h.engine.RetrieveWith(r.Context(), q, ragcore.RetrieveOptions{
		Budget: req.budget(h.budget),
		Filter: req.filter(),
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, http.StatusOK, result)
}

// Stats handles GET /v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, http.StatusOK, stats)
}
