// Package search implements cached semantic search over freight-payment
// events. Query results are memoized in a bounded TTL cache keyed by the
// normalized query; concurrent misses for the same key are collapsed so the
// embedding provider is called once.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/freightops/paylens/internal/cache"
	"github.com/freightops/paylens/internal/domain"
	domsearch "github.com/freightops/paylens/internal/domain/search"
	"github.com/freightops/paylens/internal/metrics"
)

// Options tunes limits, candidate overshoot, and caching.
type Options struct {
	MaxLimit        int
	DefaultLimit    int
	CandidateFactor int
	CandidateFloor  int
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// Service answers semantic-search queries against the event index.
type Service struct {
	repo    Repository
	embed   Embedder
	cache   *cache.Cache[[]domsearch.Result]
	flight  singleflight.Group
	opts    Options
	logger  *zap.Logger
}

// New creates a search service.
func New(repo Repository, embed Embedder, opts Options, logger *zap.Logger) *Service {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.CandidateFactor <= 0 {
		opts.CandidateFactor = 2
	}
	if opts.CandidateFloor <= 0 {
		opts.CandidateFloor = 50
	}
	if opts.CacheMaxEntries <= 0 {
		opts.CacheMaxEntries = 1000
	}
	return &Service{
		repo:   repo,
		embed:  embed,
		cache:  cache.New[[]domsearch.Result](opts.CacheMaxEntries),
		opts:   opts,
		logger: logger,
	}
}

// Search returns the top-limit events most similar to the query text, ranked
// by descending score. Limit must be in [1, MaxLimit].
func (s *Service) Search(ctx context.Context, query string, limit int) ([]domsearch.Result, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	}()

	normalized := normalizeQuery(query)
	if normalized == "" {
		return nil, fmt.Errorf("%w: query must not be empty", domain.ErrValidation)
	}
	if err := s.checkLimit(limit); err != nil {
		return nil, err
	}

	candidates := s.candidateCount(limit)
	key := s.cacheKey(normalized, limit, candidates)

	if results, ok := s.cache.Get(key); ok {
		metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
		return results, nil
	}
	metrics.SearchCacheTotal.WithLabelValues("miss").Inc()

	v, err, _ := s.flight.Do(key, func() (any, error) {
		results, err := s.execute(ctx, normalized, limit, candidates)
		if err != nil {
			return nil, err
		}
		s.cache.Put(key, results, s.opts.CacheTTL)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domsearch.Result), nil
}

// FindSimilar returns events most similar to a stored event, excluding the
// event itself. The stored vector is reused when present; otherwise the
// event's reason text is embedded on the fly.
func (s *Service) FindSimilar(ctx context.Context, eventID string, limit int) ([]domsearch.Result, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("similar").Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: event id must not be empty", domain.ErrValidation)
	}
	if err := s.checkLimit(limit); err != nil {
		return nil, err
	}

	ev, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	vector := ev.Vector()
	if !ev.HasVector() {
		res, err := s.embedWithRetry(ctx, normalizeQuery(ev.Reason()))
		if err != nil {
			return nil, err
		}
		vector = res.Embedding
	}

	// Overshoot by one so the source event can be dropped without shrinking
	// the page.
	raw, err := s.repo.Nearest(ctx, vector, s.candidateCount(limit)+1)
	if err != nil {
		return nil, err
	}

	filtered := raw[:0]
	for _, r := range raw {
		if r.EventID() == ev.ID() {
			continue
		}
		filtered = append(filtered, r)
	}

	return finalize(filtered, limit), nil
}

// InvalidateCache drops all cached search results. Called after ingestion
// writes so stale pages are not served.
func (s *Service) InvalidateCache() {
	s.cache.InvalidateAll()
}

// CacheStats reports result-cache occupancy and hit rate for health checks.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Close stops the cache sweeper.
func (s *Service) Close() {
	s.cache.Stop()
}

// StartSweeper launches periodic expired-entry cleanup on the result cache.
func (s *Service) StartSweeper(interval time.Duration) {
	s.cache.StartSweeper(interval)
}

func (s *Service) execute(ctx context.Context, query string, limit, candidates int) ([]domsearch.Result, error) {
	embRes, err := s.embedWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}

	raw, err := s.nearestWithRetry(ctx, embRes.Embedding, candidates)
	if err != nil {
		return nil, err
	}

	return finalize(raw, limit), nil
}

// embedWithRetry retries once, immediately, on transient provider errors.
// Dimension mismatches and validation errors are permanent and not retried.
func (s *Service) embedWithRetry(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := s.embed.Embed(ctx, text)
	if err == nil || !errors.Is(err, domain.ErrEmbeddingUpstream) {
		return res, err
	}
	s.logger.Warn("Embedding request failed, retrying once", zap.Error(err))
	return s.embed.Embed(ctx, text)
}

func (s *Service) nearestWithRetry(ctx context.Context, vector []float32, k int) ([]domsearch.Result, error) {
	raw, err := s.repo.Nearest(ctx, vector, k)
	if err == nil || !errors.Is(err, domain.ErrStoreUpstream) {
		return raw, err
	}
	s.logger.Warn("Vector search failed, retrying once", zap.Error(err))
	return s.repo.Nearest(ctx, vector, k)
}

func (s *Service) checkLimit(limit int) error {
	if limit < 1 || limit > s.opts.MaxLimit {
		return fmt.Errorf("%w: limit must be in [1, %d]", domain.ErrValidation, s.opts.MaxLimit)
	}
	return nil
}

// DefaultLimit is the page size callers should use when none was requested.
func (s *Service) DefaultLimit() int {
	return s.opts.DefaultLimit
}

// candidateCount widens the KNN retrieval so deduplication and filtering do
// not shrink the final page below limit.
func (s *Service) candidateCount(limit int) int {
	candidates := limit * s.opts.CandidateFactor
	if candidates < s.opts.CandidateFloor {
		candidates = s.opts.CandidateFloor
	}
	return candidates
}

func (s *Service) cacheKey(normalized string, limit, candidates int) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d|%s", normalized, limit, candidates, s.embed.Model()))
	return hex.EncodeToString(h[:])
}

// normalizeQuery lowercases, trims, and collapses internal whitespace so
// trivially different spellings share a cache entry.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// finalize dedupes by event ID keeping the highest score, clamps scores to
// [0,1], orders deterministically, assigns 1-based ranks, and truncates.
func finalize(raw []domsearch.Result, limit int) []domsearch.Result {
	best := make(map[string]domsearch.Result, len(raw))
	for _, r := range raw {
		if prev, ok := best[r.EventID()]; ok && prev.Score() >= r.Score() {
			continue
		}
		best[r.EventID()] = r
	}

	results := make([]domsearch.Result, 0, len(best))
	for _, r := range best {
		results = append(results, clampScore(r))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		if !results[i].Timestamp().Equal(results[j].Timestamp()) {
			return results[i].Timestamp().After(results[j].Timestamp())
		}
		return results[i].EventID() < results[j].EventID()
	})

	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i] = results[i].WithRank(i + 1)
	}
	return results
}

func clampScore(r domsearch.Result) domsearch.Result {
	score := r.Score()
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	if score == r.Score() {
		return r
	}
	return domsearch.New(r.EventID(), r.Reason(), r.Status(), r.Carrier(), r.Timestamp(), score)
}
