// Package trend holds windowed aggregate types for trend reporting.
package trend

import "time"

// CategoryCount is a status/category with its event count.
type CategoryCount struct {
	Category string
	Count    int
}

// Bucket aggregates events for one fixed time window. Buckets partition the
// requested range without gaps or overlaps, oldest first.
type Bucket struct {
	windowStart   time.Time
	windowEnd     time.Time
	count         int
	changePct     float64
	isNew         bool
	topCategories []CategoryCount
}

// NewBucket creates a bucket for [start, end) with its count and category
// breakdown. Change-vs-previous is set separately once neighbors are known.
func NewBucket(start, end time.Time, count int, top []CategoryCount) Bucket {
	return Bucket{windowStart: start, windowEnd: end, count: count, topCategories: top}
}

// WindowStart returns the inclusive window start.
func (b *Bucket) WindowStart() time.Time { return b.windowStart }

// WindowEnd returns the exclusive window end.
func (b *Bucket) WindowEnd() time.Time { return b.windowEnd }

// Count returns the number of events in the window.
func (b *Bucket) Count() int { return b.count }

// ChangePct returns the rate of change versus the previous window.
// Meaningless when IsNew is true.
func (b *Bucket) ChangePct() float64 { return b.changePct }

// IsNew reports that the previous window was empty while this one is not,
// so no ratio is defined.
func (b *Bucket) IsNew() bool { return b.isNew }

// TopCategories returns the most frequent categories in the window.
func (b *Bucket) TopCategories() []CategoryCount { return b.topCategories }

// SetChange records the change versus the previous window:
// (current-previous)/previous, 0 when both are 0, "new" when previous is 0
// and current is positive.
func (b *Bucket) SetChange(previousCount int) {
	switch {
	case previousCount == 0 && b.count == 0:
		b.changePct = 0
	case previousCount == 0:
		b.isNew = true
	default:
		b.changePct = float64(b.count-previousCount) / float64(previousCount)
	}
}

// ReasonCount is a reason text with its event count.
type ReasonCount struct {
	Reason string
	Count  int
}

// Summary is an aggregate snapshot of the whole corpus.
type Summary struct {
	TotalEvents    int
	EmbeddedEvents int
	EmbeddedPct    float64
	TopReasons     []ReasonCount
	Anomalies      []Anomaly
	GeneratedAt    time.Time
}

// Anomaly flags a day whose count deviates strongly from the trailing mean.
type Anomaly struct {
	WindowStart time.Time
	Count       int
	Baseline    float64
}
