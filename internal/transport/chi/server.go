// Package chi is the HTTP surface of the service: search, analytics, and
// ingestion endpoints plus health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/freightops/paylens/internal/domain"
	dombatch "github.com/freightops/paylens/internal/domain/batch"
	domsearch "github.com/freightops/paylens/internal/domain/search"
	"github.com/freightops/paylens/internal/domain/trend"
	healthuc "github.com/freightops/paylens/internal/usecase/health"
)

// SearchService answers semantic-search queries.
type SearchService interface {
	Search(ctx context.Context, query string, limit int) ([]domsearch.Result, error)
	FindSimilar(ctx context.Context, eventID string, limit int) ([]domsearch.Result, error)
	DefaultLimit() int
}

// AnalyticsService builds trend and summary reports.
type AnalyticsService interface {
	GetTrends(ctx context.Context, days int) ([]trend.Bucket, error)
	GetSummary(ctx context.Context) (trend.Summary, error)
}

// BatchService backfills embeddings onto stored events.
type BatchService interface {
	EmbedEvents(ctx context.Context, ids []string) []dombatch.Result
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes API requests to the use-case services.
type Server struct {
	search        SearchService
	analytics     AnalyticsService
	batch         BatchService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search SearchService,
	analytics AnalyticsService,
	batch BatchService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		analytics: analytics,
		batch:     batch,
		health:    health,
		logger:    logger,
	}
	// Order matters: specific sentinels before the broad upstream ones.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEventNotFound, http.StatusNotFound, codeEventNotFound),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, codeVectorMismatch),
		sentinelHandler(domain.ErrEmbeddingUpstream, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrStoreUpstream, http.StatusBadGateway, codeStoreError),
	}
	return s
}

// RegisterRoutes mounts all API routes on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/api/search", s.handleSearch)
	r.Get("/api/similar/{eventID}", s.handleSimilar)
	r.Get("/api/trends", s.handleTrends)
	r.Get("/api/analytics", s.handleSummary)
	r.Post("/api/events/embed", s.handleEmbed)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// An omitted limit means the service default; an explicit one, including
	// zero, is validated by the service as-is.
	limit := s.search.DefaultLimit()
	if req.Limit != nil {
		limit = *req.Limit
	}

	results, err := s.search.Search(r.Context(), req.Query, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(results))
}

// handleSimilar handles GET /api/similar/{eventID}.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	limit := s.search.DefaultLimit()
	if r.URL.Query().Has("limit") {
		if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid limit parameter")
			return
		}
	}

	results, err := s.search.FindSimilar(r.Context(), eventID, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(results))
}

// handleTrends handles GET /api/trends.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	days := 7
	if err := runtime.BindQueryParameter("form", true, false, "days", r.URL.Query(), &days); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid days parameter")
		return
	}

	buckets, err := s.analytics.GetTrends(r.Context(), days)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := trendsResponse{Days: days, Buckets: make([]trendBucket, len(buckets))}
	for i := range buckets {
		resp.Buckets[i] = bucketToDTO(&buckets[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSummary handles GET /api/analytics.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.analytics.GetSummary(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryToDTO(sum))
}

// handleEmbed handles POST /api/events/embed.
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "ids must not be empty")
		return
	}

	results := s.batch.EmbedEvents(r.Context(), req.IDs)

	resp := embedResponse{Items: make([]embedResultItem, len(results))}
	for i, res := range results {
		resp.Items[i] = batchResultToDTO(res, batchErrorCode, safeDomainMessage)
		switch res.Status() {
		case dombatch.StatusOK:
			resp.Succeeded++
		case dombatch.StatusSkipped:
			resp.Skipped++
		default:
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthToDTO(report))
}

func toSearchResponse(results []domsearch.Result) searchResponse {
	items := make([]searchResultItem, len(results))
	for i := range results {
		items[i] = searchResultToDTO(&results[i])
	}
	return searchResponse{Results: items, TotalResults: len(items)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Validation errors keep their detail; everything else degrades to the
// sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEventNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingUpstream,
		domain.ErrStoreUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	// Upstream failures are operator-actionable; caller errors are not.
	if domain.IsUpstream(err) {
		s.logger.Error("upstream dependency failure", zap.Error(err))
	} else {
		s.logger.Warn("request rejected", zap.Error(err))
	}
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func batchErrorCode(err error) errorCode {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return codeValidationFailed
	case errors.Is(err, domain.ErrEventNotFound):
		return codeEventNotFound
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return codeVectorMismatch
	case errors.Is(err, domain.ErrEmbeddingUpstream):
		return codeEmbeddingError
	case errors.Is(err, domain.ErrStoreUpstream):
		return codeStoreError
	default:
		return codeInternalError
	}
}
