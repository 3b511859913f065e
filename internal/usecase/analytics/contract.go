package analytics

import (
	"context"
	"time"

	"github.com/freightops/paylens/internal/domain/trend"
	"github.com/freightops/paylens/internal/repository/event"
)

// Repository defines the aggregate queries trends are built from.
type Repository interface {
	CountAll(ctx context.Context) (int, error)
	CountEmbedded(ctx context.Context) (int, error)
	DailyCounts(ctx context.Context, from, to time.Time) (map[int64]int, error)
	DailyCategoryCounts(ctx context.Context, from, to time.Time) ([]event.DayCategoryCount, error)
	TopReasons(ctx context.Context, limit int) ([]trend.ReasonCount, error)
}
