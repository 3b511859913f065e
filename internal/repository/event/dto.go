package event

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/freightops/paylens/internal/domain"
)

// Hash field names for stored events.
const (
	fieldReason   = "reason"
	fieldStatus   = "status"
	fieldCarrier  = "carrier"
	fieldTS       = "ts"
	fieldVector   = "vector"
	fieldEmbedded = "embedded"
)

// reservedFields are hash fields with dedicated meaning; everything else is
// carried as event metadata.
var reservedFields = map[string]struct{}{
	fieldReason: {}, fieldStatus: {}, fieldCarrier: {},
	fieldTS: {}, fieldVector: {}, fieldEmbedded: {},
}

// parseHashFields converts a flat hash map into a domain Event.
func parseHashFields(id string, m map[string]string) domain.Event {
	var (
		reason  = m[fieldReason]
		status  = m[fieldStatus]
		carrier = m[fieldCarrier]
		vector  []float32
		ts      time.Time
	)

	if raw, ok := m[fieldVector]; ok {
		vector = bytesToVector(raw)
	}
	if sec, err := strconv.ParseInt(m[fieldTS], 10, 64); err == nil {
		ts = time.Unix(sec, 0).UTC()
	}

	var metadata map[string]string
	for k, v := range m {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata[k] = v
	}

	return domain.Reconstruct(id, reason, status, carrier, ts, vector, metadata)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// idFromKey strips the key prefix, leaving the bare event identifier.
func idFromKey(key, prefix string) string {
	return strings.TrimPrefix(key, prefix)
}
