// Package booking holds the domain types shared by the reservation
// orchestrator: the Orchestration aggregate, its per-service legs, and the
// refund records produced by the cancellation flow.
package booking

import "time"

// ServiceKind identifies the family of travel service a leg books.
type ServiceKind string

const (
	KindFlight   ServiceKind = "flight"
	KindHotel    ServiceKind = "hotel"
	KindActivity ServiceKind = "activity"
)

// Valid reports whether k is one of the known service kinds.
func (k ServiceKind) Valid() bool {
	switch k {
	case KindFlight, KindHotel, KindActivity:
		return true
	}
	return false
}

// Status is the orchestration-level lifecycle state.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusPartial    Status = "PARTIAL"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// LegStatus is the per-leg outcome.
type LegStatus string

const (
	LegConfirmed LegStatus = "CONFIRMED"
	LegFailed    LegStatus = "FAILED"
	LegCancelled LegStatus = "CANCELLED"
)

// PartyInfo describes the travellers a leg is booked for.
type PartyInfo struct {
	LeadName  string
	Email     string
	Travelers int
}

// ServiceRequest is one requested leg of a submission. Immutable once
// submitted.
type ServiceRequest struct {
	Kind     ServiceKind
	OfferRef string
	Party    PartyInfo
}

// CustomerInfo identifies the customer behind a submission.
type CustomerInfo struct {
	UserID string
	Name   string
	Email  string
}

// BookingLeg is the settled outcome of a single service booking attempt.
// One leg exists per requested service; a leg is written once when it
// settles and only the cancel flow may touch it afterwards.
type BookingLeg struct {
	Kind              ServiceKind
	ExternalBookingID string
	ConfirmationCode  string
	Amount            float64
	Currency          string
	Status            LegStatus
	FailureReason     string
}

// Orchestration is the aggregate record tracking every leg of one
// multi-service reservation request. Its ID is the caller-supplied
// idempotency key, so resubmissions collapse onto the same record.
type Orchestration struct {
	ID     string
	UserID string

	// PaymentRef is the caller-supplied payment reference; PaymentIntent is
	// the gateway intent created for it before any leg was dispatched.
	PaymentRef    string
	PaymentIntent string

	Requested   []ServiceRequest
	Legs        []BookingLeg
	Status      Status
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Terminal reports whether the orchestration has left its Processing window.
func (o *Orchestration) Terminal() bool {
	return o.Status != StatusProcessing
}

// LegByBookingID returns the index of the leg carrying the given external
// booking id, or -1 if no leg matches.
func (o *Orchestration) LegByBookingID(bookingID string) int {
	for i, leg := range o.Legs {
		if leg.ExternalBookingID == bookingID {
			return i
		}
	}
	return -1
}

// RefundRecord is the immutable outcome of one cancellation. NeedsReview is
// set when the refund policy had no tier for the booking's age and the most
// conservative fee was applied instead.
type RefundRecord struct {
	ID             string
	BookingID      string
	OriginalAmount float64
	FeeRate        float64
	Fee            float64
	RefundAmount   float64
	Reason         string
	NeedsReview    bool
	ProcessedAt    time.Time
}
