package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/freightops/paylens/internal/db"
)

// Aggregate runs a grouping aggregation via FT.AGGREGATE.
func (s *Store) Aggregate(ctx context.Context, q *db.AggregateQuery) ([]db.AggregateRow, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	args := []string{q.IndexName, q.Query}

	for _, a := range q.Apply {
		args = append(args, "APPLY", a.Expression, "AS", a.Alias)
	}

	if len(q.GroupBy) > 0 {
		args = append(args, "GROUPBY", strconv.Itoa(len(q.GroupBy)))
		for _, g := range q.GroupBy {
			args = append(args, "@"+g)
		}
		for _, r := range q.Reducers {
			args = append(args, "REDUCE", r.Function, strconv.Itoa(len(r.Args)))
			args = append(args, r.Args...)
			args = append(args, "AS", r.Alias)
		}
	}

	if q.SortBy != nil {
		dir := "ASC"
		if q.SortBy.Descending {
			dir = "DESC"
		}
		args = append(args, "SORTBY", "2", "@"+q.SortBy.Property, dir)
	}

	if q.Limit > 0 {
		args = append(args, "LIMIT", "0", strconv.Itoa(q.Limit))
	}

	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}

	return parseAggregateResult(raw)
}

func parseAggregateResult(raw []rueidis.RedisMessage) ([]db.AggregateRow, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// [total, row1, row2, ...] where each row is a flat field/value array.
	rows := make([]db.AggregateRow, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		pairs, err := raw[i].ToArray()
		if err != nil {
			continue
		}
		rows = append(rows, db.AggregateRow(parseFieldPairs(pairs)))
	}
	return rows, nil
}
