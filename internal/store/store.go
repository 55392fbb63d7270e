// Package store defines the persistence port for orchestration records and
// provides an in-memory reference implementation. The orchestrator depends
// on the interface only; the sqlite subpackage supplies the durable variant.
package store

import (
	"context"
	"errors"

	"github.com/voyago/travel-sagas/internal/booking"
)

var (
	// ErrNotFound is returned when no record matches the given key.
	ErrNotFound = errors.New("record not found")

	// ErrRefundExists is returned by CreateRefund when a refund record
	// already exists for the booking. Cancellation is deliberately not
	// idempotent, so a duplicate create is an error, never an upsert.
	ErrRefundExists = errors.New("refund record already exists")
)

// Store persists orchestrations, their legs, and refund records.
type Store interface {
	// CreateOrchestration atomically stores o with its requested legs,
	// keyed by o.ID (the idempotency key). If a record with the same id
	// already exists, the pre-existing record is returned with created
	// false and nothing is written — compare-and-create semantics, so
	// concurrent submissions with one key can never produce duplicates.
	CreateOrchestration(ctx context.Context, o *booking.Orchestration) (rec *booking.Orchestration, created bool, err error)

	// GetOrchestration returns the orchestration with the given id.
	GetOrchestration(ctx context.Context, id string) (*booking.Orchestration, error)

	// UpdateOrchestration replaces the stored record for o.ID.
	UpdateOrchestration(ctx context.Context, o *booking.Orchestration) error

	// OrchestrationByBookingID returns the orchestration owning the leg
	// with the given external booking id.
	OrchestrationByBookingID(ctx context.Context, bookingID string) (*booking.Orchestration, error)

	// CreateRefund stores an immutable refund record, failing with
	// ErrRefundExists if the booking already has one.
	CreateRefund(ctx context.Context, rec *booking.RefundRecord) error

	// RefundByBookingID returns the refund record for a booking, or
	// ErrNotFound.
	RefundByBookingID(ctx context.Context, bookingID string) (*booking.RefundRecord, error)
}
