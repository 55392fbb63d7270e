// Package sqlite provides the durable Store implementation backed by
// SQLite.
//
// WAL mode is enabled on Open so that status reads never block the
// orchestrator's writes. Timestamps are stored as RFC3339 TEXT, the SQLite
// idiom, and parsed back on read.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voyago/travel-sagas/internal/booking"
	"github.com/voyago/travel-sagas/internal/store"

	// Pure-Go SQLite driver; avoids CGO so cross-compilation and Alpine
	// images stay simple.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orchestrations (
    -- The caller-supplied idempotency key doubles as the primary key,
    -- which is what makes create-if-absent race-free.
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    payment_ref    TEXT NOT NULL,
    payment_intent TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    created_at   TEXT NOT NULL,
    completed_at TEXT
);

CREATE TABLE IF NOT EXISTS orchestration_legs (
    orchestration_id    TEXT    NOT NULL REFERENCES orchestrations(id),
    idx                 INTEGER NOT NULL,

    -- Requested side, immutable once submitted.
    kind                TEXT    NOT NULL,
    offer_ref           TEXT    NOT NULL,
    lead_name           TEXT    NOT NULL DEFAULT '',
    email               TEXT    NOT NULL DEFAULT '',
    travelers           INTEGER NOT NULL DEFAULT 0,

    -- Result side, written once the leg settles.
    external_booking_id TEXT    NOT NULL DEFAULT '',
    confirmation_code   TEXT    NOT NULL DEFAULT '',
    amount              REAL    NOT NULL DEFAULT 0,
    currency            TEXT    NOT NULL DEFAULT '',
    leg_status          TEXT    NOT NULL DEFAULT '',
    failure_reason      TEXT    NOT NULL DEFAULT '',

    PRIMARY KEY (orchestration_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_legs_booking_id
    ON orchestration_legs(external_booking_id);

CREATE TABLE IF NOT EXISTS refunds (
    id              TEXT PRIMARY KEY,

    -- UNIQUE enforces at the storage layer that a booking is refunded at
    -- most once, backing the AlreadyCancelled check.
    booking_id      TEXT NOT NULL UNIQUE,
    original_amount REAL NOT NULL,
    fee_rate        REAL NOT NULL,
    fee             REAL NOT NULL,
    refund_amount   REAL NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    needs_review    INTEGER NOT NULL DEFAULT 0,
    processed_at    TEXT NOT NULL
);
`

// Store is the SQLite implementation of store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateOrchestration(ctx context.Context, o *booking.Orchestration) (*booking.Orchestration, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: begin create: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO orchestrations (id, user_id, payment_ref, payment_intent, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.PaymentRef, o.PaymentIntent, string(o.Status),
		formatTime(o.CreatedAt), nullableTime(o.CompletedAt),
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: create orchestration %q: %w", o.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		// Lost the compare-and-create race (or a resubmission): hand the
		// pre-existing record to the caller untouched. The transaction must
		// be released first — with a single pooled connection the fallback
		// read would otherwise wait on the connection this tx still holds.
		if err := tx.Rollback(); err != nil {
			return nil, false, fmt.Errorf("sqlite: rollback create %q: %w", o.ID, err)
		}
		existing, err := s.GetOrchestration(ctx, o.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := insertLegs(ctx, tx, o); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("sqlite: commit create %q: %w", o.ID, err)
	}
	return o, true, nil
}

func (s *Store) GetOrchestration(ctx context.Context, id string) (*booking.Orchestration, error) {
	return s.getOrchestration(ctx, "id = ?", id)
}

func (s *Store) OrchestrationByBookingID(ctx context.Context, bookingID string) (*booking.Orchestration, error) {
	return s.getOrchestration(ctx,
		"id = (SELECT orchestration_id FROM orchestration_legs WHERE external_booking_id = ? LIMIT 1)",
		bookingID)
}

func (s *Store) getOrchestration(ctx context.Context, where string, arg any) (*booking.Orchestration, error) {
	q := `
		SELECT id, user_id, payment_ref, payment_intent, status, created_at, COALESCE(completed_at, '')
		FROM   orchestrations
		WHERE  ` + where

	row := s.db.QueryRowContext(ctx, q, arg)

	var o booking.Orchestration
	var status, createdAt, completedAt string
	err := row.Scan(&o.ID, &o.UserID, &o.PaymentRef, &o.PaymentIntent, &status, &createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get orchestration: %w", err)
	}

	o.Status = booking.Status(status)
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if completedAt != "" {
		if o.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, err
		}
	}

	if err := s.loadLegs(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) loadLegs(ctx context.Context, o *booking.Orchestration) error {
	const q = `
		SELECT kind, offer_ref, lead_name, email, travelers,
		       external_booking_id, confirmation_code, amount, currency,
		       leg_status, failure_reason
		FROM   orchestration_legs
		WHERE  orchestration_id = ?
		ORDER  BY idx`

	rows, err := s.db.QueryContext(ctx, q, o.ID)
	if err != nil {
		return fmt.Errorf("sqlite: load legs for %q: %w", o.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var req booking.ServiceRequest
		var leg booking.BookingLeg
		var kind, legStatus string
		if err := rows.Scan(
			&kind, &req.OfferRef, &req.Party.LeadName, &req.Party.Email, &req.Party.Travelers,
			&leg.ExternalBookingID, &leg.ConfirmationCode, &leg.Amount, &leg.Currency,
			&legStatus, &leg.FailureReason,
		); err != nil {
			return fmt.Errorf("sqlite: scan leg: %w", err)
		}
		req.Kind = booking.ServiceKind(kind)
		leg.Kind = req.Kind
		leg.Status = booking.LegStatus(legStatus)

		o.Requested = append(o.Requested, req)
		if leg.Status != "" {
			o.Legs = append(o.Legs, leg)
		}
	}
	return rows.Err()
}

func (s *Store) UpdateOrchestration(ctx context.Context, o *booking.Orchestration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orchestrations
		SET    user_id = ?, payment_ref = ?, payment_intent = ?, status = ?, completed_at = ?
		WHERE  id = ?`,
		o.UserID, o.PaymentRef, o.PaymentIntent, string(o.Status), nullableTime(o.CompletedAt), o.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update orchestration %q: %w", o.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	// Legs are few per orchestration; replacing the rows wholesale is
	// simpler than diffing and stays inside the same transaction.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM orchestration_legs WHERE orchestration_id = ?`, o.ID); err != nil {
		return fmt.Errorf("sqlite: clear legs for %q: %w", o.ID, err)
	}
	if err := insertLegs(ctx, tx, o); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit update %q: %w", o.ID, err)
	}
	return nil
}

func insertLegs(ctx context.Context, tx *sql.Tx, o *booking.Orchestration) error {
	const q = `
		INSERT INTO orchestration_legs
			(orchestration_id, idx, kind, offer_ref, lead_name, email, travelers,
			 external_booking_id, confirmation_code, amount, currency, leg_status, failure_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i, req := range o.Requested {
		var leg booking.BookingLeg
		if i < len(o.Legs) {
			leg = o.Legs[i]
		}
		if _, err := tx.ExecContext(ctx, q,
			o.ID, i, string(req.Kind), req.OfferRef,
			req.Party.LeadName, req.Party.Email, req.Party.Travelers,
			leg.ExternalBookingID, leg.ConfirmationCode, leg.Amount, leg.Currency,
			string(leg.Status), leg.FailureReason,
		); err != nil {
			return fmt.Errorf("sqlite: insert leg %d for %q: %w", i, o.ID, err)
		}
	}
	return nil
}

func (s *Store) CreateRefund(ctx context.Context, rec *booking.RefundRecord) error {
	const q = `
		INSERT INTO refunds
			(id, booking_id, original_amount, fee_rate, fee, refund_amount, reason, needs_review, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.BookingID, rec.OriginalAmount, rec.FeeRate, rec.Fee,
		rec.RefundAmount, rec.Reason, boolToInt(rec.NeedsReview),
		formatTime(rec.ProcessedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrRefundExists
		}
		return fmt.Errorf("sqlite: create refund for %q: %w", rec.BookingID, err)
	}
	return nil
}

func (s *Store) RefundByBookingID(ctx context.Context, bookingID string) (*booking.RefundRecord, error) {
	const q = `
		SELECT id, booking_id, original_amount, fee_rate, fee, refund_amount, reason, needs_review, processed_at
		FROM   refunds
		WHERE  booking_id = ?`

	row := s.db.QueryRowContext(ctx, q, bookingID)

	var rec booking.RefundRecord
	var needsReview int
	var processedAt string
	err := row.Scan(&rec.ID, &rec.BookingID, &rec.OriginalAmount, &rec.FeeRate,
		&rec.Fee, &rec.RefundAmount, &rec.Reason, &needsReview, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get refund for %q: %w", bookingID, err)
	}

	rec.NeedsReview = needsReview != 0
	if rec.ProcessedAt, err = parseTime(processedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
