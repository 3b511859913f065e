package health

import (
	"context"

	"github.com/freightops/paylens/internal/cache"
)

// DBPinger checks vector-store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CacheReporter exposes cache occupancy and hit-rate counters.
type CacheReporter interface {
	CacheStats() cache.Stats
}
