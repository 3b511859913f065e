package batch

import (
	"context"

	"github.com/freightops/paylens/internal/domain"
)

// Repository reads events and writes embeddings back.
type Repository interface {
	Get(ctx context.Context, id string) (domain.Event, error)
	SetVector(ctx context.Context, id string, vector []float32) error
}

// Embedder vectorizes event reasons. Providers that also implement
// domain.BatchEmbedder get one call per batch; anything else is driven one
// text at a time through domain.BatchFallback.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// CacheInvalidator drops derived caches after ingestion writes.
type CacheInvalidator interface {
	InvalidateCache()
}
