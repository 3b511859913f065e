package chi

import (
	"time"

	dombatch "github.com/freightops/paylens/internal/domain/batch"
	domsearch "github.com/freightops/paylens/internal/domain/search"
	"github.com/freightops/paylens/internal/domain/trend"
	healthuc "github.com/freightops/paylens/internal/usecase/health"
)

// errorCode is a machine-readable error identifier in error responses.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeEventNotFound    errorCode = "event_not_found"
	codeVectorMismatch   errorCode = "vector_dim_mismatch"
	codeEmbeddingError   errorCode = "embedding_upstream_error"
	codeStoreError       errorCode = "store_upstream_error"
	codeUnauthorized     errorCode = "unauthorized"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

type searchResultItem struct {
	EventID   string    `json:"event_id"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status,omitempty"`
	Carrier   string    `json:"carrier,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Rank      int       `json:"rank"`
}

type searchResponse struct {
	Results      []searchResultItem `json:"results"`
	TotalResults int                `json:"total_results"`
}

type trendBucket struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Count       int       `json:"count"`
	// change_pct is a percentage: -50 means half the prior window.
	ChangePct     float64         `json:"change_pct"`
	IsNew         bool            `json:"is_new"`
	TopCategories []categoryCount `json:"top_categories,omitempty"`
}

type categoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type trendsResponse struct {
	Days    int           `json:"days"`
	Buckets []trendBucket `json:"buckets"`
}

type reasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type anomaly struct {
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
	Baseline    float64   `json:"baseline"`
}

type summaryResponse struct {
	TotalEvents    int           `json:"total_events"`
	EmbeddedEvents int           `json:"embedded_events"`
	EmbeddedPct    float64       `json:"embedded_pct"`
	TopReasons     []reasonCount `json:"top_reasons"`
	Anomalies      []anomaly     `json:"anomalies,omitempty"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

type embedRequest struct {
	IDs []string `json:"ids"`
}

type embedResultItem struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Error     *errorResponse `json:"error,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

type embedResponse struct {
	Items     []embedResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
}

type cacheReport struct {
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	HitRate  float64 `json:"hit_rate"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]string      `json:"checks"`
	Caches map[string]cacheReport `json:"caches,omitempty"`
}

func searchResultToDTO(r *domsearch.Result) searchResultItem {
	return searchResultItem{
		EventID:   r.EventID(),
		Reason:    r.Reason(),
		Status:    r.Status(),
		Carrier:   r.Carrier(),
		Timestamp: r.Timestamp(),
		Score:     r.Score(),
		Rank:      r.Rank(),
	}
}

func bucketToDTO(b *trend.Bucket) trendBucket {
	var top []categoryCount
	for _, c := range b.TopCategories() {
		top = append(top, categoryCount{Category: c.Category, Count: c.Count})
	}
	return trendBucket{
		WindowStart:   b.WindowStart(),
		WindowEnd:     b.WindowEnd(),
		Count:         b.Count(),
		ChangePct:     b.ChangePct() * 100, // domain keeps a ratio, the API reports percent
		IsNew:         b.IsNew(),
		TopCategories: top,
	}
}

func summaryToDTO(s trend.Summary) summaryResponse {
	reasons := make([]reasonCount, len(s.TopReasons))
	for i, r := range s.TopReasons {
		reasons[i] = reasonCount{Reason: r.Reason, Count: r.Count}
	}
	var anomalies []anomaly
	for _, a := range s.Anomalies {
		anomalies = append(anomalies, anomaly{
			WindowStart: a.WindowStart,
			Count:       a.Count,
			Baseline:    a.Baseline,
		})
	}
	return summaryResponse{
		TotalEvents:    s.TotalEvents,
		EmbeddedEvents: s.EmbeddedEvents,
		EmbeddedPct:    s.EmbeddedPct,
		TopReasons:     reasons,
		Anomalies:      anomalies,
		GeneratedAt:    s.GeneratedAt,
	}
}

func batchResultToDTO(r dombatch.Result, code func(error) errorCode, msg func(error) string) embedResultItem {
	item := embedResultItem{
		ID:        r.ID(),
		Status:    string(r.Status()),
		Retryable: r.Retryable(),
	}
	if r.Err() != nil {
		item.Error = &errorResponse{
			Code:    code(r.Err()),
			Message: msg(r.Err()),
		}
	}
	return item
}

func healthToDTO(r healthuc.Report) healthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	var caches map[string]cacheReport
	if len(r.Caches) > 0 {
		caches = make(map[string]cacheReport, len(r.Caches))
		for k, v := range r.Caches {
			caches[k] = cacheReport{Size: v.Size, Capacity: v.Capacity, HitRate: v.HitRate}
		}
	}
	return healthResponse{
		Status: string(r.Status),
		Checks: checks,
		Caches: caches,
	}
}
