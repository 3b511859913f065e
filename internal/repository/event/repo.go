// Package event is the typed boundary between the services and the vector
// store. Raw store responses are validated and converted into domain types
// here; malformed documents are dropped instead of propagated.
package event

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/freightops/paylens/internal/db"
	"github.com/freightops/paylens/internal/domain"
	domsearch "github.com/freightops/paylens/internal/domain/search"
	"github.com/freightops/paylens/internal/domain/trend"
)

const secondsPerDay = 86400

// store is the consumer interface for event storage (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	Exists(ctx context.Context, key string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	Aggregate(ctx context.Context, q *db.AggregateQuery) ([]db.AggregateRow, error)
}

// Repo reads and writes freight-payment events.
type Repo struct {
	store     store
	keyPrefix string
	logger    *zap.Logger
}

// New creates an event repository. keyPrefix is the storage namespace
// (e.g. "paylens:").
func New(s store, keyPrefix string, logger *zap.Logger) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, logger: logger}
}

func (r *Repo) eventKey(id string) string {
	return r.keyPrefix + "events:" + id
}

func (r *Repo) indexName() string {
	return r.keyPrefix + "events:idx"
}

// Get returns an event by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Event, error) {
	key := r.eventKey(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: hgetall %s: %w", domain.ErrStoreUpstream, key, err)
	}
	if len(fields) == 0 {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return parseHashFields(id, fields), nil
}

// SetVector writes an embedding back onto a stored event and marks it
// embedded. Write-back onto a missing event is refused so a stale backfill
// request cannot create an orphan hash.
func (r *Repo) SetVector(ctx context.Context, id string, vector []float32) error {
	key := r.eventKey(id)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: exists %s: %w", domain.ErrStoreUpstream, key, err)
	}
	if !ok {
		return domain.ErrEventNotFound
	}
	err = r.store.HSet(ctx, key, map[string]string{
		fieldVector:   vectorToBytes(vector),
		fieldEmbedded: "1",
	})
	if err != nil {
		return fmt.Errorf("%w: hset %s: %w", domain.ErrStoreUpstream, key, err)
	}
	return nil
}

// Nearest returns the k nearest events to the query vector by cosine
// similarity, unranked. Malformed documents are dropped. The distance field
// must be requested explicitly: a RETURN clause limits the reply to the
// listed fields.
func (r *Repo) Nearest(ctx context.Context, vector []float32, k int) ([]domsearch.Result, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldReason, fieldStatus, fieldCarrier, fieldTS, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search knn: %w", domain.ErrStoreUpstream, err)
	}

	results := make([]domsearch.Result, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		res, ok := r.entryToResult(entry)
		if !ok {
			r.logger.Warn("Dropping malformed event from search results",
				zap.String("key", entry.Key))
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Repo) entryToResult(entry db.SearchEntry) (domsearch.Result, bool) {
	id := idFromKey(entry.Key, r.keyPrefix+"events:")
	if id == "" {
		return domsearch.Result{}, false
	}

	reason, ok := entry.Fields[fieldReason]
	if !ok || reason == "" {
		return domsearch.Result{}, false
	}

	sec, err := strconv.ParseInt(entry.Fields[fieldTS], 10, 64)
	if err != nil {
		return domsearch.Result{}, false
	}

	return domsearch.New(
		id, reason,
		entry.Fields[fieldStatus],
		entry.Fields[fieldCarrier],
		time.Unix(sec, 0).UTC(),
		entry.Score,
	), true
}

// CountAll returns the total number of stored events.
func (r *Repo) CountAll(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("%w: count events: %w", domain.ErrStoreUpstream, err)
	}
	return n, nil
}

// CountEmbedded returns the number of events with a populated vector.
func (r *Repo) CountEmbedded(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), "@embedded:{1}")
	if err != nil {
		return 0, fmt.Errorf("%w: count embedded events: %w", domain.ErrStoreUpstream, err)
	}
	return n, nil
}

// DailyCounts returns event counts grouped by UTC day for [from, to).
// Keys are unix-epoch day numbers.
func (r *Repo) DailyCounts(ctx context.Context, from, to time.Time) (map[int64]int, error) {
	rows, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName: r.indexName(),
		Query:     tsRangeQuery(from, to),
		Apply:     []db.Apply{{Expression: fmt.Sprintf("floor(@ts/%d)", secondsPerDay), Alias: "day"}},
		GroupBy:   []string{"day"},
		Reducers:  []db.Reducer{{Function: "COUNT", Alias: "count"}},
		SortBy:    &db.SortBy{Property: "day"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: daily counts: %w", domain.ErrStoreUpstream, err)
	}

	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		day, count, ok := parseDayCount(row)
		if !ok {
			continue
		}
		counts[day] = count
	}
	return counts, nil
}

// DayCategoryCount is one (day, category) aggregation cell.
type DayCategoryCount struct {
	Day      int64 // unix-epoch day number
	Category string
	Count    int
}

// DailyCategoryCounts returns event counts grouped by UTC day and status
// category for [from, to).
func (r *Repo) DailyCategoryCounts(ctx context.Context, from, to time.Time) ([]DayCategoryCount, error) {
	rows, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName: r.indexName(),
		Query:     tsRangeQuery(from, to),
		Apply:     []db.Apply{{Expression: fmt.Sprintf("floor(@ts/%d)", secondsPerDay), Alias: "day"}},
		GroupBy:   []string{"day", "status"},
		Reducers:  []db.Reducer{{Function: "COUNT", Alias: "count"}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: daily category counts: %w", domain.ErrStoreUpstream, err)
	}

	cells := make([]DayCategoryCount, 0, len(rows))
	for _, row := range rows {
		day, count, ok := parseDayCount(row)
		if !ok {
			continue
		}
		cells = append(cells, DayCategoryCount{Day: day, Category: row["status"], Count: count})
	}
	return cells, nil
}

// TopReasons returns the most frequent reasons across the whole corpus.
func (r *Repo) TopReasons(ctx context.Context, limit int) ([]trend.ReasonCount, error) {
	rows, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName: r.indexName(),
		Query:     "*",
		GroupBy:   []string{"reason"},
		Reducers:  []db.Reducer{{Function: "COUNT", Alias: "count"}},
		SortBy:    &db.SortBy{Property: "count", Descending: true},
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: top reasons: %w", domain.ErrStoreUpstream, err)
	}

	reasons := make([]trend.ReasonCount, 0, len(rows))
	for _, row := range rows {
		count, err := strconv.Atoi(row["count"])
		if err != nil || row["reason"] == "" {
			continue
		}
		reasons = append(reasons, trend.ReasonCount{Reason: row["reason"], Count: count})
	}
	return reasons, nil
}

func parseDayCount(row db.AggregateRow) (day int64, count int, ok bool) {
	d, err := strconv.ParseFloat(row["day"], 64)
	if err != nil {
		return 0, 0, false
	}
	c, err := strconv.Atoi(row["count"])
	if err != nil {
		return 0, 0, false
	}
	return int64(d), c, true
}

func tsRangeQuery(from, to time.Time) string {
	return fmt.Sprintf("@ts:[%d (%d]", from.Unix(), to.Unix())
}
