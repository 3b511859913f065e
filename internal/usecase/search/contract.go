package search

import (
	"context"

	"github.com/freightops/paylens/internal/domain"
	domsearch "github.com/freightops/paylens/internal/domain/search"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	Get(ctx context.Context, id string) (domain.Event, error)
	Nearest(ctx context.Context, vector []float32, k int) ([]domsearch.Result, error)
}

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	Model() string
}
