// Package audit defines the activity-log capability the orchestrator emits
// to. Entries form a durable trail of every orchestration transition and
// carry the active trace identifiers, so a row in the audit table can be
// followed straight into the distributed trace.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Events recorded by the orchestrator.
const (
	EventSubmitted    = "SUBMITTED"
	EventLegConfirmed = "LEG_CONFIRMED"
	EventLegFailed    = "LEG_FAILED"
	EventSettled      = "SETTLED"
	EventModified     = "MODIFIED"
	EventCancelled    = "CANCELLED"
)

// Entry is a single audit record. Append-only: entries are never updated.
type Entry struct {
	// OrchestrationID ties the entry to its orchestration record so the
	// trail can be joined with business data.
	OrchestrationID string

	// Event names the transition, one of the Event* constants.
	Event string

	// Metadata is a JSON object of event-specific details.
	Metadata string

	// TraceID and SpanID identify the OTel span active when the entry was
	// written. Empty when no span is in flight (unit tests).
	TraceID string
	SpanID  string

	RecordedAt time.Time
}

// Recorder is the port the orchestrator writes through. Implementations
// must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, orchestrationID, event string, metadata map[string]string) error
}

// NewEntry builds an Entry with trace identifiers extracted from ctx and
// metadata serialised to JSON.
func NewEntry(ctx context.Context, orchestrationID, event string, metadata map[string]string) *Entry {
	meta := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			meta = string(b)
		}
	}

	entry := &Entry{
		OrchestrationID: orchestrationID,
		Event:           event,
		Metadata:        meta,
		RecordedAt:      time.Now().UTC(),
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}

	return entry
}
