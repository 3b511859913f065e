package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/freightops/paylens/internal/domain"
	domsearch "github.com/freightops/paylens/internal/domain/search"
)

var baseTS = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestSearch_RanksAndTruncates(t *testing.T) {
	svc, repo, _ := newTestService(t)

	repo.nearestFn = func(_ context.Context, _ []float32, k int) ([]domsearch.Result, error) {
		if k != 50 {
			t.Errorf("expected candidate count 50 (floor), got %d", k)
		}
		return []domsearch.Result{
			hit("ev-low", 0.40, baseTS),
			hit("ev-top", 0.95, baseTS),
			hit("ev-mid", 0.70, baseTS),
		}, nil
	}

	results, err := svc.Search(context.Background(), "detention charge", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results after truncation, got %d", len(results))
	}
	if results[0].EventID() != "ev-top" || results[0].Rank() != 1 {
		t.Errorf("expected ev-top at rank 1, got %s rank %d", results[0].EventID(), results[0].Rank())
	}
	if results[1].EventID() != "ev-mid" || results[1].Rank() != 2 {
		t.Errorf("expected ev-mid at rank 2, got %s rank %d", results[1].EventID(), results[1].Rank())
	}
}

func TestSearch_DeduplicatesKeepingHighestScore(t *testing.T) {
	svc, repo, _ := newTestService(t)

	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{
			hit("ev-1", 0.60, baseTS),
			hit("ev-1", 0.90, baseTS),
			hit("ev-2", 0.70, baseTS),
		}, nil
	}

	results, err := svc.Search(context.Background(), "duplicate invoice", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 unique results, got %d", len(results))
	}
	if results[0].EventID() != "ev-1" || results[0].Score() != 0.90 {
		t.Errorf("expected ev-1 with score 0.90 first, got %s/%f", results[0].EventID(), results[0].Score())
	}
}

func TestSearch_TieBreakByTimestampThenID(t *testing.T) {
	svc, repo, _ := newTestService(t)

	newer := baseTS.Add(time.Hour)
	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{
			hit("ev-b", 0.80, baseTS),
			hit("ev-a", 0.80, baseTS),
			hit("ev-c", 0.80, newer),
		}, nil
	}

	results, err := svc.Search(context.Background(), "tie break", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"ev-c", "ev-a", "ev-b"}
	for i, id := range want {
		if results[i].EventID() != id {
			t.Errorf("position %d: expected %s, got %s", i, id, results[i].EventID())
		}
	}
}

func TestSearch_ClampsScores(t *testing.T) {
	svc, repo, _ := newTestService(t)

	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{
			hit("ev-over", 1.4, baseTS),
			hit("ev-under", -0.2, baseTS),
		}, nil
	}

	results, err := svc.Search(context.Background(), "clamp", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Score() != 1.0 {
		t.Errorf("expected score clamped to 1.0, got %f", results[0].Score())
	}
	if results[1].Score() != 0.0 {
		t.Errorf("expected score clamped to 0.0, got %f", results[1].Score())
	}
}

func TestSearch_CacheHitSkipsUpstream(t *testing.T) {
	svc, repo, emb := newTestService(t)

	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{hit("ev-1", 0.9, baseTS)}, nil
	}

	first, err := svc.Search(context.Background(), "Detention  Charge", 5)
	if err != nil {
		t.Fatalf("first search failed: %v", err)
	}

	// Same query modulo case and whitespace lands on the same cache entry.
	second, err := svc.Search(context.Background(), "  detention charge ", 5)
	if err != nil {
		t.Fatalf("second search failed: %v", err)
	}

	if emb.embedCalls != 1 || repo.nearestCalls != 1 {
		t.Errorf("expected 1 embed/1 nearest call, got %d/%d", emb.embedCalls, repo.nearestCalls)
	}
	if len(first) != len(second) || first[0].EventID() != second[0].EventID() {
		t.Error("cached result differs from original")
	}
}

func TestSearch_DifferentLimitIsDifferentCacheEntry(t *testing.T) {
	svc, repo, emb := newTestService(t)

	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{hit("ev-1", 0.9, baseTS)}, nil
	}

	if _, err := svc.Search(context.Background(), "query", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Search(context.Background(), "query", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.embedCalls != 2 {
		t.Errorf("expected separate cache entries per limit, embed calls = %d", emb.embedCalls)
	}
}

func TestSearch_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	cases := []struct {
		name  string
		query string
		limit int
	}{
		{"empty query", "", 5},
		{"whitespace query", "   \t ", 5},
		{"zero limit", "q", 0},
		{"negative limit", "q", -1},
		{"limit over max", "q", 101},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tc.query, tc.limit)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestDefaultLimit(t *testing.T) {
	svc, _, _ := newTestService(t)

	if got := svc.DefaultLimit(); got != 10 {
		t.Errorf("expected default limit 10, got %d", got)
	}
}

func TestSearch_RetriesTransientEmbeddingError(t *testing.T) {
	svc, repo, emb := newTestService(t)

	emb.embedFn = func(_ context.Context, _ string) (domain.EmbeddingResult, error) {
		if emb.embedCalls == 1 {
			return domain.EmbeddingResult{}, fmt.Errorf("%w: provider hiccup", domain.ErrEmbeddingUpstream)
		}
		return domain.EmbeddingResult{Embedding: []float32{0.1}}, nil
	}
	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{hit("ev-1", 0.9, baseTS)}, nil
	}

	results, err := svc.Search(context.Background(), "flaky provider", 5)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if emb.embedCalls != 2 {
		t.Errorf("expected exactly 2 embed calls, got %d", emb.embedCalls)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestSearch_DimensionMismatchNotRetriedOrCached(t *testing.T) {
	svc, _, emb := newTestService(t)

	emb.embedFn = func(_ context.Context, _ string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{}, domain.ErrVectorDimMismatch
	}

	if _, err := svc.Search(context.Background(), "wrong dims", 5); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if emb.embedCalls != 1 {
		t.Errorf("dimension mismatch must not be retried, got %d embed calls", emb.embedCalls)
	}

	// Failures must not poison the cache: the next attempt goes upstream again.
	if _, err := svc.Search(context.Background(), "wrong dims", 5); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch on second attempt, got %v", err)
	}
	if emb.embedCalls != 2 {
		t.Errorf("expected second upstream attempt after failure, got %d embed calls", emb.embedCalls)
	}
}

func TestSearch_FewerResultsThanLimit(t *testing.T) {
	svc, repo, _ := newTestService(t)

	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{hit("ev-1", 0.9, baseTS)}, nil
	}

	results, err := svc.Search(context.Background(), "sparse corpus", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
	if results[0].Rank() != 1 {
		t.Errorf("expected rank 1, got %d", results[0].Rank())
	}
}

func TestSearch_CandidateOvershoot(t *testing.T) {
	svc, repo, _ := newTestService(t)

	var gotK int
	repo.nearestFn = func(_ context.Context, _ []float32, k int) ([]domsearch.Result, error) {
		gotK = k
		return nil, nil
	}

	// 40*2 = 80 > floor of 50.
	if _, err := svc.Search(context.Background(), "wide page", 40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotK != 80 {
		t.Errorf("expected candidate count 80, got %d", gotK)
	}
}

func TestInvalidateCache(t *testing.T) {
	svc, repo, emb := newTestService(t)

	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{hit("ev-1", 0.9, baseTS)}, nil
	}

	if _, err := svc.Search(context.Background(), "query", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.InvalidateCache()
	if _, err := svc.Search(context.Background(), "query", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.embedCalls != 2 {
		t.Errorf("expected cache invalidation to force a second upstream call, got %d", emb.embedCalls)
	}
}

func TestFindSimilar_ReusesStoredVector(t *testing.T) {
	svc, repo, emb := newTestService(t)

	repo.getFn = func(_ context.Context, id string) (domain.Event, error) {
		return domain.Reconstruct(id, "late payment", "REJECTED", "maersk",
			baseTS, []float32{0.5, 0.5}, nil), nil
	}
	repo.nearestFn = func(_ context.Context, vector []float32, k int) ([]domsearch.Result, error) {
		if vector[0] != 0.5 {
			t.Errorf("expected stored vector to be reused, got %v", vector)
		}
		if k != 51 {
			t.Errorf("expected candidate count 51 (floor+1), got %d", k)
		}
		return []domsearch.Result{
			hit("ev-src", 1.0, baseTS),
			hit("ev-other", 0.8, baseTS),
		}, nil
	}

	results, err := svc.FindSimilar(context.Background(), "ev-src", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.embedCalls != 0 {
		t.Errorf("expected no embedding call when vector is stored, got %d", emb.embedCalls)
	}
	if len(results) != 1 || results[0].EventID() != "ev-other" {
		t.Fatalf("expected source event excluded, got %v", results)
	}
	if results[0].Rank() != 1 {
		t.Errorf("expected surviving result reranked to 1, got %d", results[0].Rank())
	}
}

func TestFindSimilar_EmbedsReasonWhenNoVector(t *testing.T) {
	svc, repo, emb := newTestService(t)

	repo.getFn = func(_ context.Context, id string) (domain.Event, error) {
		return domain.Reconstruct(id, "Customs Hold", "PENDING", "msc", baseTS, nil, nil), nil
	}
	emb.embedFn = func(_ context.Context, text string) (domain.EmbeddingResult, error) {
		if text != "customs hold" {
			t.Errorf("expected normalized reason text, got %q", text)
		}
		return domain.EmbeddingResult{Embedding: []float32{0.3}}, nil
	}
	repo.nearestFn = func(_ context.Context, _ []float32, _ int) ([]domsearch.Result, error) {
		return []domsearch.Result{hit("ev-other", 0.7, baseTS)}, nil
	}

	results, err := svc.FindSimilar(context.Background(), "ev-src", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.embedCalls != 1 {
		t.Errorf("expected reason to be embedded, got %d calls", emb.embedCalls)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestFindSimilar_NotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)

	repo.getFn = func(_ context.Context, _ string) (domain.Event, error) {
		return domain.Event{}, domain.ErrEventNotFound
	}

	_, err := svc.FindSimilar(context.Background(), "ghost", 5)
	if !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}
