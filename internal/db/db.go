// Package db defines the storage contracts the repositories are written
// against. The concrete implementation lives in db/redis.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
// Consumers depend on narrow sub-interfaces (ISP).
type Store interface {
	Pinger
	HashStore
	Searcher
	Aggregator
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based document operations.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Aggregator provides FT.AGGREGATE grouping operations.
type Aggregator interface {
	Aggregate(ctx context.Context, q *AggregateQuery) ([]AggregateRow, error)
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is cosine similarity clamped to [0,1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Apply is a computed expression with an alias (FT.AGGREGATE APPLY).
type Apply struct {
	Expression string
	Alias      string
}

// Reducer is a GROUPBY reducer (FT.AGGREGATE REDUCE).
type Reducer struct {
	Function string // COUNT, SUM, ...
	Args     []string
	Alias    string
}

// SortBy orders aggregate rows by a property.
type SortBy struct {
	Property   string
	Descending bool
}

// AggregateQuery is the input for a grouping aggregation.
type AggregateQuery struct {
	IndexName string
	Query     string
	Apply     []Apply
	GroupBy   []string
	Reducers  []Reducer
	SortBy    *SortBy
	Limit     int // 0 = no explicit LIMIT
}

// AggregateRow is one grouped result row, property name to value.
type AggregateRow map[string]string
