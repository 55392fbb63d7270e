// Package orchestration implements the multi-service reservation
// coordinator: fan-out booking attempts across the registered service
// adapters, fan-in the per-leg outcomes, derive one orchestration status,
// and compute compensating refunds on cancellation.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/voyago/travel-sagas/internal/adapter"
	"github.com/voyago/travel-sagas/internal/audit"
	"github.com/voyago/travel-sagas/internal/booking"
	"github.com/voyago/travel-sagas/internal/payment"
	"github.com/voyago/travel-sagas/internal/refund"
	"github.com/voyago/travel-sagas/internal/store"
)

// DefaultLegTimeout bounds each adapter call during Submit.
const DefaultLegTimeout = 30 * time.Second

// Config carries the tunables; zero values fall back to defaults.
type Config struct {
	// LegTimeout bounds each individual adapter Book call.
	LegTimeout time.Duration

	// Policy is the refund policy table used by Cancel.
	Policy refund.Policy

	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Orchestrator owns the submit/modify/cancel/status API. All collaborators
// are injected; there is no global state. auditor may be nil, in which case
// the audit trail is skipped.
type Orchestrator struct {
	adapters *adapter.Registry
	store    store.Store
	payments payment.Service
	auditor  audit.Recorder

	legTimeout time.Duration
	policy     refund.Policy
	now        func() time.Time

	// inflight serialises concurrent submissions with the same idempotency
	// key: one goroutine dispatches, the rest wait for and share its result.
	inflight singleflight.Group
}

func New(adapters *adapter.Registry, st store.Store, payments payment.Service, auditor audit.Recorder, cfg Config) *Orchestrator {
	if cfg.LegTimeout <= 0 {
		cfg.LegTimeout = DefaultLegTimeout
	}
	if cfg.Policy == nil {
		cfg.Policy = refund.DefaultPolicy
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		adapters:   adapters,
		store:      st,
		payments:   payments,
		auditor:    auditor,
		legTimeout: cfg.LegTimeout,
		policy:     cfg.Policy,
		now:        cfg.Now,
	}
}

// Submit books every requested leg and returns the settled orchestration.
//
// Resubmission with a known idempotency key returns the existing record
// unchanged; no adapter is called. A leg failure is recorded on the leg and
// never aborts its siblings or the call itself — Submit only errors on
// infrastructure failure (store unreachable, no adapter for a requested
// kind, payment intent creation failed).
func (o *Orchestrator) Submit(ctx context.Context, idempotencyKey string, requests []booking.ServiceRequest, customer booking.CustomerInfo, paymentRef string) (*booking.Orchestration, error) {
	if idempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrInvalidRequest)
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: at least one service request is required", ErrInvalidRequest)
	}
	for _, req := range requests {
		if !req.Kind.Valid() {
			return nil, fmt.Errorf("%w: unknown service kind %q", ErrInvalidRequest, req.Kind)
		}
		// Resolve adapters up front: a missing adapter is a wiring bug and
		// must fail the whole call before any side effect.
		if _, err := o.adapters.Lookup(req.Kind); err != nil {
			return nil, err
		}
	}

	res, err, _ := o.inflight.Do(idempotencyKey, func() (any, error) {
		return o.submit(ctx, idempotencyKey, requests, customer, paymentRef)
	})
	if err != nil {
		return nil, err
	}
	return res.(*booking.Orchestration), nil
}

func (o *Orchestrator) submit(ctx context.Context, key string, requests []booking.ServiceRequest, customer booking.CustomerInfo, paymentRef string) (*booking.Orchestration, error) {
	if existing, err := o.store.GetOrchestration(ctx, key); err == nil {
		slog.InfoContext(ctx, "idempotent resubmission", "orchestration_id", key, "status", existing.Status)
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup orchestration %q: %w", key, err)
	}

	// Intent before booking: if the payment gateway cannot set up the
	// charge there is nothing to compensate later, and we fail with no
	// partial persistence.
	intentID, err := o.payments.CreateIntent(ctx, paymentRef, customer.UserID)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	orch := &booking.Orchestration{
		ID:            key,
		UserID:        customer.UserID,
		PaymentRef:    paymentRef,
		PaymentIntent: intentID,
		Requested:     requests,
		Status:        booking.StatusProcessing,
		CreatedAt:     o.now().UTC(),
	}

	rec, created, err := o.store.CreateOrchestration(ctx, orch)
	if err != nil {
		return nil, fmt.Errorf("create orchestration %q: %w", key, err)
	}
	if !created {
		// Another process won the compare-and-create race; return its
		// record and make no bookings of our own.
		return rec, nil
	}

	o.record(ctx, key, audit.EventSubmitted, map[string]string{
		"user_id": customer.UserID,
		"legs":    fmt.Sprint(len(requests)),
	})

	orch.Legs = o.dispatch(ctx, key, requests, paymentRef)
	orch.Status = booking.Aggregate(orch.Legs)
	orch.CompletedAt = o.now().UTC()

	// Persist on a context detached from the caller: if the client
	// disconnected mid-flight we still must record every settled leg,
	// otherwise a confirmed booking would be charged but untracked.
	persistCtx := context.WithoutCancel(ctx)
	if err := o.store.UpdateOrchestration(persistCtx, orch); err != nil {
		return nil, fmt.Errorf("persist orchestration %q: %w", key, err)
	}

	o.record(persistCtx, key, audit.EventSettled, map[string]string{"status": string(orch.Status)})
	slog.InfoContext(ctx, "orchestration settled", "orchestration_id", key, "status", orch.Status)

	return orch, nil
}

// dispatch runs one booking attempt per requested leg, concurrently, and
// blocks until every leg has settled. Legs are isolated: a slow or failing
// provider never delays or aborts its siblings beyond the shared timeout.
func (o *Orchestrator) dispatch(ctx context.Context, key string, requests []booking.ServiceRequest, paymentRef string) []booking.BookingLeg {
	legs := make([]booking.BookingLeg, len(requests))
	done := make(chan int, len(requests))

	for i, req := range requests {
		go func(i int, req booking.ServiceRequest) {
			defer func() { done <- i }()
			legs[i] = o.bookLeg(ctx, key, req, paymentRef)
		}(i, req)
	}

	// Fan-in barrier: every leg settles (confirmed, failed, or timed out)
	// before the aggregate status is derived.
	for range requests {
		<-done
	}
	return legs
}

func (o *Orchestrator) bookLeg(ctx context.Context, key string, req booking.ServiceRequest, paymentRef string) booking.BookingLeg {
	svc, err := o.adapters.Lookup(req.Kind)
	if err != nil {
		// Checked before dispatch; hitting this means the registry changed
		// under us, so record it as a failed leg rather than panicking.
		return failedLeg(req.Kind, err)
	}

	legCtx, cancel := context.WithTimeout(ctx, o.legTimeout)
	defer cancel()

	res, err := svc.Book(legCtx, req.OfferRef, req.Party, paymentRef)
	if err != nil {
		reason := adapter.FailureReason(err)
		slog.WarnContext(ctx, "leg booking failed",
			"orchestration_id", key, "kind", req.Kind, "reason", reason)
		o.record(context.WithoutCancel(ctx), key, audit.EventLegFailed, map[string]string{
			"kind":   string(req.Kind),
			"reason": reason,
		})
		return booking.BookingLeg{Kind: req.Kind, Status: booking.LegFailed, FailureReason: reason}
	}

	o.record(context.WithoutCancel(ctx), key, audit.EventLegConfirmed, map[string]string{
		"kind":       string(req.Kind),
		"booking_id": res.ExternalBookingID,
	})

	return booking.BookingLeg{
		Kind:              req.Kind,
		ExternalBookingID: res.ExternalBookingID,
		ConfirmationCode:  res.ConfirmationCode,
		Amount:            res.Amount,
		Currency:          res.Currency,
		Status:            booking.LegConfirmed,
	}
}

// Modify reroutes a change request for one leg to its adapter and persists
// the reissued confirmation code.
func (o *Orchestrator) Modify(ctx context.Context, orchestrationID string, legIndex int, changes map[string]string) (booking.BookingLeg, error) {
	orch, err := o.getOrchestration(ctx, orchestrationID)
	if err != nil {
		return booking.BookingLeg{}, err
	}
	if legIndex < 0 || legIndex >= len(orch.Legs) {
		return booking.BookingLeg{}, fmt.Errorf("%w: orchestration %q has no leg %d", ErrLegNotFound, orchestrationID, legIndex)
	}

	leg := orch.Legs[legIndex]
	if leg.Status != booking.LegConfirmed {
		return booking.BookingLeg{}, fmt.Errorf("leg %d is %s: %w", legIndex, leg.Status, adapter.ErrModificationRejected)
	}

	svc, err := o.adapters.Lookup(leg.Kind)
	if err != nil {
		return booking.BookingLeg{}, err
	}

	code, err := svc.Modify(ctx, leg.ExternalBookingID, changes)
	if err != nil {
		return booking.BookingLeg{}, fmt.Errorf("modify leg %d of %q: %w", legIndex, orchestrationID, err)
	}

	orch.Legs[legIndex].ConfirmationCode = code
	if err := o.store.UpdateOrchestration(ctx, orch); err != nil {
		return booking.BookingLeg{}, fmt.Errorf("persist modification: %w", err)
	}

	o.record(ctx, orchestrationID, audit.EventModified, map[string]string{
		"leg":        fmt.Sprint(legIndex),
		"booking_id": leg.ExternalBookingID,
	})

	return orch.Legs[legIndex], nil
}

// Cancel unwinds one confirmed booking: it quotes the refund from the
// policy table, cancels with the provider, refunds through the payment
// capability, and persists the immutable refund record. A booking that
// already has a refund record is rejected with ErrAlreadyCancelled.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID, reason string, policy refund.Policy) (*booking.RefundRecord, error) {
	if policy == nil {
		policy = o.policy
	}

	orch, err := o.store.OrchestrationByBookingID(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no leg with booking id %q", ErrLegNotFound, bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup booking %q: %w", bookingID, err)
	}

	if _, err := o.store.RefundByBookingID(ctx, bookingID); err == nil {
		return nil, fmt.Errorf("booking %q: %w", bookingID, ErrAlreadyCancelled)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup refund for %q: %w", bookingID, err)
	}

	idx := orch.LegByBookingID(bookingID)
	leg := orch.Legs[idx]
	if leg.Status == booking.LegCancelled {
		return nil, fmt.Errorf("booking %q: %w", bookingID, ErrAlreadyCancelled)
	}

	now := o.now().UTC()
	days := int(now.Sub(orch.CreatedAt).Hours() / 24)
	quote := policy.Quote(leg.Kind, leg.Amount, days)

	svc, err := o.adapters.Lookup(leg.Kind)
	if err != nil {
		return nil, err
	}
	if err := svc.Cancel(ctx, bookingID); err != nil {
		return nil, fmt.Errorf("cancel booking %q with provider: %w", bookingID, err)
	}

	// The unique refund insert claims the booking before any money moves:
	// of two racing Cancel calls only the one holding the record reaches
	// the payment gateway, the other gets AlreadyCancelled.
	rec := &booking.RefundRecord{
		ID:             uuid.NewString(),
		BookingID:      bookingID,
		OriginalAmount: leg.Amount,
		FeeRate:        quote.FeeRate,
		Fee:            quote.Fee,
		RefundAmount:   quote.RefundAmount,
		Reason:         reason,
		NeedsReview:    quote.NeedsReview,
		ProcessedAt:    now,
	}
	if err := o.store.CreateRefund(ctx, rec); err != nil {
		if errors.Is(err, store.ErrRefundExists) {
			return nil, fmt.Errorf("booking %q: %w", bookingID, ErrAlreadyCancelled)
		}
		// The provider booking is already gone; leave a trail for manual
		// reconciliation before surfacing the storage failure.
		o.record(context.WithoutCancel(ctx), orch.ID, audit.EventCancelled, map[string]string{
			"booking_id":    bookingID,
			"refund_status": "record_not_persisted",
		})
		return nil, fmt.Errorf("persist refund for %q: %w", bookingID, err)
	}

	if err := o.payments.Refund(ctx, orch.PaymentIntent, quote.RefundAmount); err != nil {
		// The record exists but the gateway did not pay out; flag it so the
		// refund can be reissued by hand.
		o.record(context.WithoutCancel(ctx), orch.ID, audit.EventCancelled, map[string]string{
			"booking_id":    bookingID,
			"refund_id":     rec.ID,
			"refund_status": "payment_failed",
		})
		slog.ErrorContext(ctx, "payment refund failed after record persisted",
			"orchestration_id", orch.ID, "booking_id", bookingID, "refund_id", rec.ID, "error", err)
		return nil, fmt.Errorf("refund payment for booking %q: %w", bookingID, err)
	}

	orch.Legs[idx].Status = booking.LegCancelled
	if noneConfirmed(orch.Legs) {
		orch.Status = booking.StatusCancelled
	}
	if err := o.store.UpdateOrchestration(ctx, orch); err != nil {
		return nil, fmt.Errorf("persist cancellation of %q: %w", bookingID, err)
	}

	o.record(ctx, orch.ID, audit.EventCancelled, map[string]string{
		"booking_id":    bookingID,
		"refund_amount": fmt.Sprintf("%.2f", rec.RefundAmount),
		"fee":           fmt.Sprintf("%.2f", rec.Fee),
	})
	slog.InfoContext(ctx, "booking cancelled",
		"orchestration_id", orch.ID, "booking_id", bookingID, "refund", rec.RefundAmount)

	return rec, nil
}

// Status returns the current orchestration snapshot.
func (o *Orchestrator) Status(ctx context.Context, orchestrationID string) (*booking.Orchestration, error) {
	return o.getOrchestration(ctx, orchestrationID)
}

func (o *Orchestrator) getOrchestration(ctx context.Context, id string) (*booking.Orchestration, error) {
	orch, err := o.store.GetOrchestration(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("orchestration %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get orchestration %q: %w", id, err)
	}
	return orch, nil
}

// record writes an audit entry if a recorder is wired. Audit failures are
// logged, never propagated: the trail is best-effort, the booking is not.
func (o *Orchestrator) record(ctx context.Context, orchestrationID, event string, meta map[string]string) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.Record(ctx, orchestrationID, event, meta); err != nil {
		slog.ErrorContext(ctx, "audit record failed",
			"orchestration_id", orchestrationID, "event", event, "error", err)
	}
}

func failedLeg(kind booking.ServiceKind, err error) booking.BookingLeg {
	return booking.BookingLeg{
		Kind:          kind,
		Status:        booking.LegFailed,
		FailureReason: adapter.FailureReason(err),
	}
}

func noneConfirmed(legs []booking.BookingLeg) bool {
	for _, leg := range legs {
		if leg.Status == booking.LegConfirmed {
			return false
		}
	}
	return true
}
