package domain

import "errors"

var (
	// ErrValidation signals bad caller input (empty query, out-of-range limit).
	ErrValidation = errors.New("validation failed")
	// ErrEventNotFound signals a missing event.
	ErrEventNotFound = errors.New("event not found")
	// ErrEmbeddingUpstream signals an embedding provider failure.
	ErrEmbeddingUpstream = errors.New("embedding provider error")
	// ErrStoreUpstream signals a vector store failure.
	ErrStoreUpstream = errors.New("vector store error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// IsUpstream reports whether err is a failure of an external collaborator
// (embedding provider or vector store) rather than a caller error.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrEmbeddingUpstream) ||
		errors.Is(err, ErrStoreUpstream) ||
		errors.Is(err, ErrVectorDimMismatch)
}
