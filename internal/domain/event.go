package domain

import "time"

// Event is a single freight-payment occurrence stored in the vector store.
// Events are created by the ingestion path and are immutable once embedded,
// except for the vector field which may be populated after the fact.
type Event struct {
	id        string
	reason    string
	status    string
	carrier   string
	timestamp time.Time
	vector    []float32
	metadata  map[string]string
}

// Reconstruct builds an Event from stored fields.
func Reconstruct(
	id, reason, status, carrier string,
	timestamp time.Time,
	vector []float32,
	metadata map[string]string,
) Event {
	return Event{
		id: id, reason: reason, status: status, carrier: carrier,
		timestamp: timestamp, vector: vector, metadata: metadata,
	}
}

// ID returns the event identifier.
func (e *Event) ID() string { return e.id }

// Reason returns the free-text reason.
func (e *Event) Reason() string { return e.reason }

// Status returns the status/category.
func (e *Event) Status() string { return e.status }

// Carrier returns the carrier identifier.
func (e *Event) Carrier() string { return e.carrier }

// Timestamp returns the event timestamp.
func (e *Event) Timestamp() time.Time { return e.timestamp }

// Vector returns the embedding vector, nil when not yet embedded.
func (e *Event) Vector() []float32 { return e.vector }

// Metadata returns the arbitrary metadata mapping.
func (e *Event) Metadata() map[string]string { return e.metadata }

// HasVector reports whether the event has been embedded.
func (e *Event) HasVector() bool { return len(e.vector) > 0 }

// SetVector populates the embedding vector (write-back after batch embedding).
func (e *Event) SetVector(v []float32) { e.vector = v }
