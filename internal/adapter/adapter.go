// Package adapter defines the capability interface the orchestrator uses to
// talk to external travel providers. One implementation exists per service
// kind; the orchestrator only ever sees this interface, never a concrete
// provider type.
package adapter

import (
	"context"
	"errors"

	"github.com/voyago/travel-sagas/internal/booking"
)

// Sentinel errors adapters return so the orchestrator can classify failures
// without knowing provider specifics. Adapters wrap these with fmt.Errorf
// and %w; callers match with errors.Is.
var (
	ErrProviderUnavailable  = errors.New("provider unavailable")
	ErrRejected             = errors.New("booking rejected")
	ErrTimeout              = errors.New("provider timeout")
	ErrModificationRejected = errors.New("modification rejected")
	ErrCancellationRejected = errors.New("cancellation rejected")
)

// BookResult carries the provider's confirmation for a successful booking.
type BookResult struct {
	ExternalBookingID string
	ConfirmationCode  string
	Amount            float64
	Currency          string
}

// ServiceAdapter performs book/modify/cancel calls against one provider
// family. All calls honour ctx cancellation and deadlines; an adapter that
// cannot abort an in-flight provider call must still return promptly once
// the call settles.
type ServiceAdapter interface {
	Book(ctx context.Context, offerRef string, party booking.PartyInfo, paymentRef string) (BookResult, error)
	Modify(ctx context.Context, externalBookingID string, changes map[string]string) (newConfirmationCode string, err error)
	Cancel(ctx context.Context, externalBookingID string) error
}

// FailureReason maps an adapter (or context) error onto the short reason
// string recorded on a failed leg.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, ErrProviderUnavailable):
		return "ProviderUnavailable"
	case errors.Is(err, ErrRejected):
		return "Rejected"
	default:
		return err.Error()
	}
}
