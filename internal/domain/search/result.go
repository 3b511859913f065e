// Package search holds the typed search-result model returned to callers.
package search

import "time"

// Result is a single search hit: an event reference paired with a similarity
// score in [0,1] and a 1-based rank. Results are transient per query.
type Result struct {
	eventID   string
	reason    string
	status    string
	carrier   string
	timestamp time.Time
	score     float64
	rank      int
}

// New creates a search result without a rank assigned yet.
func New(
	eventID, reason, status, carrier string,
	timestamp time.Time, score float64,
) Result {
	return Result{
		eventID: eventID, reason: reason, status: status, carrier: carrier,
		timestamp: timestamp, score: score,
	}
}

// EventID returns the matched event identifier.
func (r *Result) EventID() string { return r.eventID }

// Reason returns the event reason text.
func (r *Result) Reason() string { return r.reason }

// Status returns the event status/category.
func (r *Result) Status() string { return r.status }

// Carrier returns the carrier identifier.
func (r *Result) Carrier() string { return r.carrier }

// Timestamp returns the event timestamp.
func (r *Result) Timestamp() time.Time { return r.timestamp }

// Score returns the similarity score in [0,1].
func (r *Result) Score() float64 { return r.score }

// Rank returns the 1-based rank by descending score.
func (r *Result) Rank() int { return r.rank }

// WithRank returns a copy with the rank set.
func (r Result) WithRank(rank int) Result {
	r.rank = rank
	return r
}
