// Package batch holds per-item outcome reporting for batch operations.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusSkipped ItemStatus = "skipped"
	StatusError   ItemStatus = "error"
)

// Result is the outcome of processing one item in a batch operation.
type Result struct {
	id        string
	status    ItemStatus
	err       error
	retryable bool
}

// NewOK creates a successful batch result.
func NewOK(id string) Result { return Result{id: id, status: StatusOK} }

// NewSkipped creates a result for an item that needed no work
// (e.g. the event was already embedded).
func NewSkipped(id string) Result { return Result{id: id, status: StatusSkipped} }

// NewError creates a failed batch result. retryable marks items that may
// succeed on a later attempt (at-least-once semantics).
func NewError(id string, err error, retryable bool) Result {
	return Result{id: id, status: StatusError, err: err, retryable: retryable}
}

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Retryable reports whether the item is safe to resubmit.
func (r Result) Retryable() bool { return r.retryable }
