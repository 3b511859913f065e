// Package batch implements the embedding backfill path: events ingested
// without a vector get one written back, with per-item outcome reporting.
package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/freightops/paylens/internal/domain"
	dombatch "github.com/freightops/paylens/internal/domain/batch"
)

// MaxBatchSize is the default maximum number of items per batch request.
const MaxBatchSize = 100

// Service backfills embeddings onto stored events.
type Service struct {
	repo         Repository
	embed        Embedder
	invalidators []CacheInvalidator
	maxBatchSize int
	logger       *zap.Logger
}

// New creates a batch service. invalidators are notified after any successful
// vector write-back so stale search pages are not served.
func New(repo Repository, embed Embedder, logger *zap.Logger, invalidators ...CacheInvalidator) *Service {
	return &Service{
		repo:         repo,
		embed:        embed,
		invalidators: invalidators,
		maxBatchSize: MaxBatchSize,
		logger:       logger,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// EmbedEvents embeds the reasons of the given events and writes the vectors
// back. Already-embedded events are skipped so resubmitting a batch is safe.
// The report has one entry per input ID, in input order.
func (s *Service) EmbedEvents(ctx context.Context, ids []string) []dombatch.Result {
	results := make([]dombatch.Result, len(ids))

	if len(ids) > s.maxBatchSize {
		err := fmt.Errorf("%w: batch size %d exceeds %d", domain.ErrValidation, len(ids), s.maxBatchSize)
		for i, id := range ids {
			results[i] = dombatch.NewError(id, err, false)
		}
		return results
	}

	// Load phase: figure out which events actually need a vector.
	texts := make([]string, 0, len(ids))
	pendingIdx := make([]int, 0, len(ids))

	for i, id := range ids {
		if id == "" {
			results[i] = dombatch.NewError(id, fmt.Errorf("%w: empty event id", domain.ErrValidation), false)
			continue
		}

		ev, err := s.repo.Get(ctx, id)
		if err != nil {
			results[i] = dombatch.NewError(id, err, errors.Is(err, domain.ErrStoreUpstream))
			continue
		}
		if ev.HasVector() {
			results[i] = dombatch.NewSkipped(id)
			continue
		}

		texts = append(texts, ev.Reason())
		pendingIdx = append(pendingIdx, i)
	}

	if len(texts) == 0 {
		return results
	}

	// One provider call for the whole batch. A provider failure leaves the
	// pending items retryable instead of aborting the report.
	embRes, err := s.embedTexts(ctx, texts)
	if err != nil {
		for _, i := range pendingIdx {
			results[i] = dombatch.NewError(ids[i], err, errors.Is(err, domain.ErrEmbeddingUpstream))
		}
		return results
	}

	var wrote bool
	for n, i := range pendingIdx {
		id := ids[i]
		if err := s.repo.SetVector(ctx, id, embRes.Embeddings[n]); err != nil {
			results[i] = dombatch.NewError(id, err, errors.Is(err, domain.ErrStoreUpstream))
			continue
		}
		results[i] = dombatch.NewOK(id)
		wrote = true
	}

	if wrote {
		s.notifyInvalidators(len(ids), len(pendingIdx), embRes.TotalTokens)
	}
	return results
}

// embedTexts uses the provider's batch endpoint when it has one.
func (s *Service) embedTexts(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.embed.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, s.embed, texts)
}

func (s *Service) notifyInvalidators(batchSize, embedded, tokens int) {
	s.logger.Info("Embedding backfill wrote vectors, invalidating caches",
		zap.Int("batch_size", batchSize),
		zap.Int("embedded", embedded),
		zap.Int("tokens", tokens))
	for _, inv := range s.invalidators {
		inv.InvalidateCache()
	}
}
