// Package health aggregates component health checks for the /health endpoint.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// CacheReport is a snapshot of one cache's occupancy and effectiveness.
// A low hit rate with a healthy store means the cache is cold, not broken.
type CacheReport struct {
	Size     int
	Capacity int
	HitRate  float64
}

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Caches map[string]CacheReport
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	caches    map[string]CacheReporter
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, embedding EmbeddingChecker) *Service {
	return &Service{db: db, embedding: embedding, caches: make(map[string]CacheReporter)}
}

// WithCache registers a named cache to include in reports.
func (s *Service) WithCache(name string, c CacheReporter) *Service {
	s.caches[name] = c
	return s
}

// Check runs health checks against all components. Component failures are
// reported, never returned: the endpoint itself stays up.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	caches := make(map[string]CacheReport, len(s.caches))
	for name, c := range s.caches {
		stats := c.CacheStats()
		caches[name] = CacheReport{
			Size:     stats.Size,
			Capacity: stats.Capacity,
			HitRate:  stats.HitRate(),
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Caches: caches}
}
