package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/freightops/paylens/internal/domain"
	domsearch "github.com/freightops/paylens/internal/domain/search"
)

type mockRepo struct {
	getFn     func(ctx context.Context, id string) (domain.Event, error)
	nearestFn func(ctx context.Context, vector []float32, k int) ([]domsearch.Result, error)

	nearestCalls int
}

func (m *mockRepo) Get(ctx context.Context, id string) (domain.Event, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.Event{}, domain.ErrEventNotFound
}

func (m *mockRepo) Nearest(ctx context.Context, vector []float32, k int) ([]domsearch.Result, error) {
	m.nearestCalls++
	if m.nearestFn != nil {
		return m.nearestFn(ctx, vector, k)
	}
	return nil, nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)

	embedCalls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func (m *mockEmbedder) Model() string { return "test-model" }

func newTestService(t *testing.T) (*Service, *mockRepo, *mockEmbedder) {
	t.Helper()
	repo := &mockRepo{}
	emb := &mockEmbedder{}
	svc := New(repo, emb, Options{
		MaxLimit:        100,
		DefaultLimit:    10,
		CandidateFactor: 2,
		CandidateFloor:  50,
		CacheTTL:        5 * time.Minute,
		CacheMaxEntries: 100,
	}, zap.NewNop())
	return svc, repo, emb
}

func hit(id string, score float64, ts time.Time) domsearch.Result {
	return domsearch.New(id, "reason for "+id, "REJECTED", "maersk", ts, score)
}
