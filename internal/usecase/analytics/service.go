// Package analytics builds trend reports and corpus summaries from store-side
// aggregates. Reports are cached briefly so dashboards polling the API do not
// hammer the index.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/freightops/paylens/internal/cache"
	"github.com/freightops/paylens/internal/domain"
	"github.com/freightops/paylens/internal/domain/trend"
	"github.com/freightops/paylens/internal/metrics"
)

const (
	secondsPerDay = 86400

	// anomalyThreshold flags a day whose count exceeds this multiple of the
	// trailing-week mean.
	anomalyThreshold = 2.0
	anomalyWindow    = 7

	granularityDay = "day"

	summaryCacheKey = "summary"
)

// Options tunes report bounds and caching.
type Options struct {
	MaxTrendDays    int
	TopCount        int
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// Service computes trend buckets and corpus summaries.
type Service struct {
	repo   Repository
	trends *cache.Cache[[]trend.Bucket]
	sums   *cache.Cache[trend.Summary]
	opts   Options
	logger *zap.Logger

	now func() time.Time
}

// New creates an analytics service.
func New(repo Repository, opts Options, logger *zap.Logger) *Service {
	if opts.MaxTrendDays <= 0 {
		opts.MaxTrendDays = 90
	}
	if opts.TopCount <= 0 {
		opts.TopCount = 5
	}
	if opts.CacheMaxEntries <= 0 {
		opts.CacheMaxEntries = 128
	}
	return &Service{
		repo:   repo,
		trends: cache.New[[]trend.Bucket](opts.CacheMaxEntries),
		sums:   cache.New[trend.Summary](1),
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// GetTrends returns one bucket per UTC day for the last days days, oldest
// first. Buckets partition the range with no gaps; empty days have zero
// counts. Each bucket carries its change versus the previous bucket.
func (s *Service) GetTrends(ctx context.Context, days int) ([]trend.Bucket, error) {
	if days < 1 || days > s.opts.MaxTrendDays {
		return nil, fmt.Errorf("%w: days must be in [1, %d]", domain.ErrValidation, s.opts.MaxTrendDays)
	}

	key := fmt.Sprintf("%d|%s", days, granularityDay)
	if buckets, ok := s.trends.Get(key); ok {
		metrics.TrendCacheTotal.WithLabelValues("hit").Inc()
		return buckets, nil
	}
	metrics.TrendCacheTotal.WithLabelValues("miss").Inc()

	buckets, err := s.buildTrends(ctx, days)
	if err != nil {
		return nil, err
	}
	s.trends.Put(key, buckets, s.opts.CacheTTL)
	return buckets, nil
}

// GetSummary returns a corpus-wide snapshot: totals, embedding coverage, top
// reasons, and days whose volume spikes above the trailing-week mean.
func (s *Service) GetSummary(ctx context.Context) (trend.Summary, error) {
	if sum, ok := s.sums.Get(summaryCacheKey); ok {
		metrics.TrendCacheTotal.WithLabelValues("hit").Inc()
		return sum, nil
	}
	metrics.TrendCacheTotal.WithLabelValues("miss").Inc()

	sum, err := s.buildSummary(ctx)
	if err != nil {
		return trend.Summary{}, err
	}
	s.sums.Put(summaryCacheKey, sum, s.opts.CacheTTL)
	return sum, nil
}

// InvalidateCache drops all cached reports. Called after ingestion writes.
func (s *Service) InvalidateCache() {
	s.trends.InvalidateAll()
	s.sums.InvalidateAll()
}

// CacheStats reports trend-cache occupancy and hit rate for health checks.
func (s *Service) CacheStats() cache.Stats {
	return s.trends.Stats()
}

// StartSweeper launches periodic expired-entry cleanup on the report caches.
func (s *Service) StartSweeper(interval time.Duration) {
	s.trends.StartSweeper(interval)
	s.sums.StartSweeper(interval)
}

// Close stops the cache sweepers.
func (s *Service) Close() {
	s.trends.Stop()
	s.sums.Stop()
}

func (s *Service) buildTrends(ctx context.Context, days int) ([]trend.Bucket, error) {
	to := s.today().AddDate(0, 0, 1) // exclusive end of today's bucket
	from := to.AddDate(0, 0, -days)

	counts, err := s.repo.DailyCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}
	cells, err := s.repo.DailyCategoryCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}

	categories := make(map[int64][]trend.CategoryCount, len(counts))
	for _, cell := range cells {
		if cell.Category == "" {
			continue
		}
		categories[cell.Day] = append(categories[cell.Day], trend.CategoryCount{
			Category: cell.Category,
			Count:    cell.Count,
		})
	}
	for day := range categories {
		top := categories[day]
		sort.Slice(top, func(i, j int) bool {
			if top[i].Count != top[j].Count {
				return top[i].Count > top[j].Count
			}
			return top[i].Category < top[j].Category
		})
		if len(top) > s.opts.TopCount {
			categories[day] = top[:s.opts.TopCount]
		}
	}

	buckets := make([]trend.Bucket, 0, days)
	prev := 0
	for d := 0; d < days; d++ {
		start := from.AddDate(0, 0, d)
		day := start.Unix() / secondsPerDay
		b := trend.NewBucket(start, start.AddDate(0, 0, 1), counts[day], categories[day])
		if d == 0 {
			// No left neighbor inside the requested range.
			b.SetChange(b.Count())
		} else {
			b.SetChange(prev)
		}
		prev = b.Count()
		buckets = append(buckets, b)
	}
	return buckets, nil
}

func (s *Service) buildSummary(ctx context.Context) (trend.Summary, error) {
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return trend.Summary{}, err
	}
	embedded, err := s.repo.CountEmbedded(ctx)
	if err != nil {
		return trend.Summary{}, err
	}
	topReasons, err := s.repo.TopReasons(ctx, s.opts.TopCount)
	if err != nil {
		return trend.Summary{}, err
	}
	anomalies, err := s.detectAnomalies(ctx)
	if err != nil {
		return trend.Summary{}, err
	}

	var pct float64
	if total > 0 {
		pct = float64(embedded) / float64(total) * 100
	}

	return trend.Summary{
		TotalEvents:    total,
		EmbeddedEvents: embedded,
		EmbeddedPct:    pct,
		TopReasons:     topReasons,
		Anomalies:      anomalies,
		GeneratedAt:    s.now().UTC(),
	}, nil
}

// detectAnomalies flags days in the last two weeks whose count exceeds twice
// the mean of the preceding seven days. Days without a full trailing window
// are skipped.
func (s *Service) detectAnomalies(ctx context.Context) ([]trend.Anomaly, error) {
	to := s.today().AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -(anomalyWindow * 2))

	counts, err := s.repo.DailyCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var anomalies []trend.Anomaly
	for d := anomalyWindow; d < anomalyWindow*2; d++ {
		start := from.AddDate(0, 0, d)
		day := start.Unix() / secondsPerDay

		var sum int
		for p := 1; p <= anomalyWindow; p++ {
			sum += counts[day-int64(p)]
		}
		baseline := float64(sum) / anomalyWindow
		if baseline == 0 {
			continue
		}
		if count := counts[day]; float64(count) > anomalyThreshold*baseline {
			anomalies = append(anomalies, trend.Anomaly{
				WindowStart: start,
				Count:       count,
				Baseline:    baseline,
			})
		}
	}
	return anomalies, nil
}

// today returns midnight UTC of the current day.
func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}
