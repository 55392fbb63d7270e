// Package sqlite provides a SQLite-backed implementation of audit.Recorder.
//
// WAL mode is enabled on Open so the orchestrator's writes never block a
// status endpoint reading the trail, and vice versa.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/voyago/travel-sagas/internal/audit"

	// Pure-Go SQLite driver; no CGO so the binary stays trivially
	// cross-compilable and Alpine-friendly.
	_ "modernc.org/sqlite"
)

// The table is append-only: each row is one immutable orchestration event.
const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Idempotency key of the orchestration this event belongs to.
    orchestration_id TEXT NOT NULL,

    -- Transition name, e.g. "SUBMITTED", "LEG_FAILED".
    event            TEXT NOT NULL,

    -- JSON object of event-specific details.
    metadata         TEXT NOT NULL DEFAULT '{}',

    -- W3C trace/span identifiers of the span active at write time.
    trace_id         TEXT NOT NULL DEFAULT '',
    span_id          TEXT NOT NULL DEFAULT '',

    -- RFC3339 stored as TEXT, the SQLite idiom.
    recorded_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_orchestration
    ON audit_log(orchestration_id, recorded_at);

CREATE INDEX IF NOT EXISTS idx_audit_log_trace ON audit_log(trace_id);
`

// Recorder is the SQLite implementation of audit.Recorder.
type Recorder struct {
	db *sql.DB
}

var _ audit.Recorder = (*Recorder)(nil)

// Open opens (or creates) the audit database at path and applies the schema.
func Open(path string) (*Recorder, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit sqlite: open %q: %w", path, err)
	}

	// Single writer connection; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit sqlite: apply schema: %w", err)
	}

	return &Recorder{db: db}, nil
}

func (r *Recorder) Close() error { return r.db.Close() }

// Record appends one audit entry. Safe for concurrent use.
func (r *Recorder) Record(ctx context.Context, orchestrationID, event string, metadata map[string]string) error {
	entry := audit.NewEntry(ctx, orchestrationID, event, metadata)

	const q = `
		INSERT INTO audit_log
			(orchestration_id, event, metadata, trace_id, span_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.OrchestrationID,
		entry.Event,
		entry.Metadata,
		entry.TraceID,
		entry.SpanID,
		entry.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit sqlite: record %s for %q: %w", event, orchestrationID, err)
	}
	return nil
}

// Trail returns every entry for an orchestration in write order.
func (r *Recorder) Trail(ctx context.Context, orchestrationID string) ([]audit.Entry, error) {
	const q = `
		SELECT orchestration_id, event, metadata, trace_id, span_id, recorded_at
		FROM   audit_log
		WHERE  orchestration_id = ?
		ORDER  BY id`

	rows, err := r.db.QueryContext(ctx, q, orchestrationID)
	if err != nil {
		return nil, fmt.Errorf("audit sqlite: trail for %q: %w", orchestrationID, err)
	}
	defer rows.Close()

	var trail []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var recordedAt string
		if err := rows.Scan(&e.OrchestrationID, &e.Event, &e.Metadata, &e.TraceID, &e.SpanID, &recordedAt); err != nil {
			return nil, fmt.Errorf("audit sqlite: scan trail row: %w", err)
		}
		e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("audit sqlite: parse time %q: %w", recordedAt, err)
		}
		trail = append(trail, e)
	}
	return trail, rows.Err()
}
