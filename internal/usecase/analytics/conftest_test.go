package analytics

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/freightops/paylens/internal/domain/trend"
	"github.com/freightops/paylens/internal/repository/event"
)

type mockRepo struct {
	countAllFn            func(ctx context.Context) (int, error)
	countEmbeddedFn       func(ctx context.Context) (int, error)
	dailyCountsFn         func(ctx context.Context, from, to time.Time) (map[int64]int, error)
	dailyCategoryCountsFn func(ctx context.Context, from, to time.Time) ([]event.DayCategoryCount, error)
	topReasonsFn          func(ctx context.Context, limit int) ([]trend.ReasonCount, error)

	dailyCountsCalls int
}

func (m *mockRepo) CountAll(ctx context.Context) (int, error) {
	if m.countAllFn != nil {
		return m.countAllFn(ctx)
	}
	return 0, nil
}

func (m *mockRepo) CountEmbedded(ctx context.Context) (int, error) {
	if m.countEmbeddedFn != nil {
		return m.countEmbeddedFn(ctx)
	}
	return 0, nil
}

func (m *mockRepo) DailyCounts(ctx context.Context, from, to time.Time) (map[int64]int, error) {
	m.dailyCountsCalls++
	if m.dailyCountsFn != nil {
		return m.dailyCountsFn(ctx, from, to)
	}
	return map[int64]int{}, nil
}

func (m *mockRepo) DailyCategoryCounts(ctx context.Context, from, to time.Time) ([]event.DayCategoryCount, error) {
	if m.dailyCategoryCountsFn != nil {
		return m.dailyCategoryCountsFn(ctx, from, to)
	}
	return nil, nil
}

func (m *mockRepo) TopReasons(ctx context.Context, limit int) ([]trend.ReasonCount, error) {
	if m.topReasonsFn != nil {
		return m.topReasonsFn(ctx, limit)
	}
	return nil, nil
}

// fixedNow pins the clock so day windows are deterministic.
var fixedNow = time.Date(2026, 2, 15, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	repo := &mockRepo{}
	svc := New(repo, Options{
		MaxTrendDays:    90,
		TopCount:        3,
		CacheTTL:        time.Minute,
		CacheMaxEntries: 16,
	}, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

// dayNum returns the unix-epoch day number for a UTC date.
func dayNum(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}
