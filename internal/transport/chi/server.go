// Package chi provides the HTTP transport over the go-chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/domain/search/request"
	"github.com/archivio/semsearch/internal/domain/search/result"
	healthuc "github.com/archivio/semsearch/internal/usecase/health"
	hybriduc "github.com/archivio/semsearch/internal/usecase/hybrid"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest           = "bad_request"
	codeInvalidParameter     = "invalid_parameter"
	codeItemNotFound         = "item_not_found"
	codeCollectionNotFound   = "collection_not_found"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeSearchUnavailable    = "search_unavailable"
	codeInternalError        = "internal_error"
)

// Query parameters with reserved meaning; everything else is a metadata filter.
var reservedParams = map[string]struct{}{
	"query":                {},
	"limit":                {},
	"similarity_threshold": {},
	"type":                 {},
}

// SimilarSearcher finds items similar to a stored item within one collection.
type SimilarSearcher interface {
	FindSimilar(ctx context.Context, itemID string, req *request.SimilarRequest) ([]result.Result, error)
}

// HybridSearcher runs a query across collections and merges the results.
type HybridSearcher interface {
	Search(ctx context.Context, req *request.Request) (*hybriduc.Response, error)
}

// Cataloger writes and removes indexed items.
type Cataloger interface {
	UpsertItem(ctx context.Context, kind domain.Kind, id, text string, metadata map[string]string) (domain.Item, error)
	DeleteItem(ctx context.Context, kind domain.Kind, id string) error
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	similar       map[string]SimilarSearcher
	hybrid        HybridSearcher
	catalog       Cataloger
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. similar maps collection names to
// their searchers.
func NewServer(
	similar map[string]SimilarSearcher,
	hybrid HybridSearcher,
	catalog Cataloger,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		similar: similar,
		hybrid:  hybrid,
		catalog: catalog,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, codeItemNotFound),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrInvalidParameter, http.StatusBadRequest, codeInvalidParameter),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrAllCollectionsUnavailable, http.StatusServiceUnavailable, codeSearchUnavailable),
	}
	return s
}

// Routes mounts all API handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/similar/{collection}/{itemID}", s.GetSimilar)
	r.Get("/search/hybrid", s.HybridSearch)
	r.Put("/items/{collection}/{itemID}", s.PutItem)
	r.Delete("/items/{collection}/{itemID}", s.DeleteItem)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type similarItem struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Score    float64           `json:"score"`
	Excerpt  string            `json:"excerpt,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type similarResponse struct {
	SourceItemID string        `json:"source_item_id"`
	SimilarItems []similarItem `json:"similar_items"`
	TotalFound   int           `json:"total_found"`
	SearchTimeMS int64         `json:"search_time_ms"`
}

// GetSimilar handles GET /similar/{collection}/{item_id}.
func (s *Server) GetSimilar(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	itemID := chi.URLParam(r, "itemID")

	searcher, ok := s.similar[collection]
	if !ok {
		writeError(w, http.StatusNotFound, codeCollectionNotFound, "unknown collection: "+collection)
		return
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}
	threshold, err := floatParam(r, "similarity_threshold")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}

	req := request.NewSimilar(limit, threshold, filtersFromQuery(r.URL.Query()))

	start := time.Now()
	results, err := searcher.FindSimilar(r.Context(), itemID, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]similarItem, len(results))
	for i := range results {
		items[i] = resultToItem(&results[i])
	}

	writeJSON(w, http.StatusOK, similarResponse{
		SourceItemID: itemID,
		SimilarItems: items,
		TotalFound:   len(items),
		SearchTimeMS: time.Since(start).Milliseconds(),
	})
}

type hybridFiltersApplied struct {
	Types             []string          `json:"types,omitempty"`
	Filters           map[string]string `json:"filters,omitempty"`
	Threshold         *float64          `json:"similarity_threshold,omitempty"`
	FailedCollections []string          `json:"failed_collections,omitempty"`
}

type hybridResponse struct {
	Query          string               `json:"query"`
	Results        []similarItem        `json:"results"`
	Total          int                  `json:"total"`
	Facets         map[string]int       `json:"facets"`
	FiltersApplied hybridFiltersApplied `json:"filters_applied"`
	SearchTimeMS   int64                `json:"search_time_ms"`
}

// HybridSearch handles GET /search/hybrid.
func (s *Server) HybridSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, codeInvalidParameter, "query parameter is required")
		return
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}
	threshold, err := floatParam(r, "similarity_threshold")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}
	kinds, err := domain.ParseKinds(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}

	filters := filtersFromQuery(q)

	req, err := request.New(query, limit, threshold, kinds, filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.hybrid.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]similarItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = resultToItem(&resp.Results[i])
	}

	facets := make(map[string]int, len(resp.Facets))
	for k, n := range resp.Facets {
		facets[string(k)] = n
	}

	applied := hybridFiltersApplied{Filters: filters}
	for _, k := range kinds {
		applied.Types = append(applied.Types, string(k))
	}
	if req.Threshold() != request.ThresholdUnset {
		t := req.Threshold()
		applied.Threshold = &t
	}
	for _, k := range resp.Failed {
		applied.FailedCollections = append(applied.FailedCollections, string(k))
	}

	writeJSON(w, http.StatusOK, hybridResponse{
		Query:          resp.Query,
		Results:        items,
		Total:          resp.Total,
		Facets:         facets,
		FiltersApplied: applied,
		SearchTimeMS:   resp.TimingMS,
	})
}

type upsertItemRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

type itemResponse struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Origin   string            `json:"origin"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PutItem handles PUT /items/{collection}/{item_id}.
func (s *Server) PutItem(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeCollectionNotFound, err.Error())
		return
	}
	itemID := chi.URLParam(r, "itemID")

	var req upsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := s.catalog.UpsertItem(r.Context(), kind, itemID, req.Text, req.Metadata)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{
		ID:       item.ID(),
		Kind:     string(item.Kind()),
		Origin:   string(item.Origin()),
		Metadata: item.Metadata(),
	})
}

// DeleteItem handles DELETE /items/{collection}/{item_id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeCollectionNotFound, err.Error())
		return
	}

	if err := s.catalog.DeleteItem(r.Context(), kind, chi.URLParam(r, "itemID")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func resultToItem(r *result.Result) similarItem {
	return similarItem{
		ID:       r.ItemID(),
		Kind:     string(r.Kind()),
		Score:    r.NormalizedScore(),
		Excerpt:  r.Excerpt(),
		Metadata: r.Metadata(),
	}
}

// intParam parses an optional integer query parameter; absent means 0.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

// floatParam parses an optional float query parameter; absent means unset.
func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return request.ThresholdUnset, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return v, nil
}

// filtersFromQuery collects non-reserved query parameters as exact-match
// metadata filters. Repeated keys keep the first value.
func filtersFromQuery(q url.Values) map[string]string {
	var filters map[string]string
	for key, vals := range q {
		if _, ok := reservedParams[key]; ok {
			continue
		}
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		if filters == nil {
			filters = make(map[string]string)
		}
		filters[key] = vals[0]
	}
	return filters
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrItemNotFound,
		domain.ErrCollectionNotFound,
		domain.ErrInvalidParameter,
		domain.ErrEmbeddingUnavailable,
		domain.ErrAllCollectionsUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
