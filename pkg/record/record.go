// Package record defines the immutable event value persisted by the pipeline.
package record

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a record. The integer values are part of the storage
// contract (the records.type column) and must not be renumbered.
type Kind int

const (
	KindLog       Kind = 0
	KindSpanStart Kind = 1
	KindSpanEnd   Kind = 2
)

// String returns a human-readable name for logs and diagnostics.
func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindSpanStart:
		return "span_start"
	case KindSpanEnd:
		return "span_end"
	default:
		return "unknown"
	}
}

// Record is one event bound for storage: a log line, a span start, or a
// span end. A Record is write-once; no field mutates after construction.
type Record struct {
	// SpanID identifies the span this event belongs to.
	SpanID uuid.UUID

	// ParentID links to the enclosing span, nil for root-level events.
	// Referential integrity is not enforced at ingestion.
	ParentID *uuid.UUID

	// Kind is the event classification.
	Kind Kind

	// Timestamp is the wall-clock capture time at creation. Monotonic
	// non-decreasing per producer, not globally ordered.
	Timestamp time.Time

	// Message is the log text, or the span name for start/end events.
	Message string

	// Attr is an opaque serialized payload, passed through unchanged.
	// Nil means absent and is stored as NULL.
	Attr []byte
}

// New constructs a record. The attr payload is copied so later mutation of
// the caller's slice cannot violate the write-once invariant.
func New(spanID uuid.UUID, parentID *uuid.UUID, kind Kind, ts time.Time, message string, attr []byte) Record {
	var attrCopy []byte
	if attr != nil {
		attrCopy = make([]byte, len(attr))
		copy(attrCopy, attr)
	}

	var parentCopy *uuid.UUID
	if parentID != nil {
		p := *parentID
		parentCopy = &p
	}

	return Record{
		SpanID:    spanID,
		ParentID:  parentCopy,
		Kind:      kind,
		Timestamp: ts,
		Message:   message,
		Attr:      attrCopy,
	}
}

// NewID generates a fresh span id. UUIDv7 keeps ids time-sortable for index
// locality; if the monotonic source fails, falls back to random v4.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
