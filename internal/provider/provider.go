// Package provider contains in-memory stand-ins for the external travel
// providers. They implement adapter.ServiceAdapter with the same failure
// modes a real provider integration exhibits (unknown offers rejected,
// outages, context cancellation), which makes them usable both for local
// runs and as realistic fixtures.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/voyago/travel-sagas/internal/adapter"
	"github.com/voyago/travel-sagas/internal/booking"
)

type reservation struct {
	offerRef         string
	confirmationCode string
	cancelled        bool
}

// InMemory is a provider simulator for one service kind, backed by a seeded
// offer catalog. Safe for concurrent use.
type InMemory struct {
	kind     booking.ServiceKind
	currency string

	mu       sync.Mutex
	offers   map[string]float64
	bookings map[string]*reservation
	down     bool
}

var _ adapter.ServiceAdapter = (*InMemory)(nil)

// NewFlight returns a flight provider seeded with a small fare catalog.
func NewFlight() *InMemory {
	return newInMemory(booking.KindFlight, "USD", map[string]float64{
		"FL-MAD-LIM-0800": 420.00,
		"FL-MAD-BOG-1015": 515.50,
		"FL-LIM-CUZ-0630": 89.90,
	})
}

// NewHotel returns a hotel provider seeded with nightly-rate offers.
func NewHotel() *InMemory {
	return newInMemory(booking.KindHotel, "USD", map[string]float64{
		"HT-LIM-MIRAFLORES-3N": 280.00,
		"HT-CUZ-CENTRO-2N":     150.00,
		"HT-BOG-CHAPINERO-4N":  340.00,
	})
}

// NewActivity returns an activity provider seeded with tour offers.
func NewActivity() *InMemory {
	return newInMemory(booking.KindActivity, "USD", map[string]float64{
		"AC-MACHU-PICCHU-DAY": 175.00,
		"AC-LIMA-FOOD-TOUR":   65.00,
		"AC-MONSERRATE-HIKE":  25.00,
	})
}

func newInMemory(kind booking.ServiceKind, currency string, offers map[string]float64) *InMemory {
	return &InMemory{
		kind:     kind,
		currency: currency,
		offers:   offers,
		bookings: make(map[string]*reservation),
	}
}

// SetDown toggles a simulated outage: every Book call fails with
// ErrProviderUnavailable until the provider is brought back up.
func (p *InMemory) SetDown(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down = down
}

func (p *InMemory) Book(ctx context.Context, offerRef string, party booking.PartyInfo, paymentRef string) (adapter.BookResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.BookResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.down {
		return adapter.BookResult{}, fmt.Errorf("%s: %w", p.kind, adapter.ErrProviderUnavailable)
	}

	price, ok := p.offers[offerRef]
	if !ok {
		return adapter.BookResult{}, fmt.Errorf("%s: offer %q not found: %w", p.kind, offerRef, adapter.ErrRejected)
	}
	if party.Travelers <= 0 {
		return adapter.BookResult{}, fmt.Errorf("%s: party must have at least one traveler: %w", p.kind, adapter.ErrRejected)
	}

	id := uuid.NewString()
	code := p.confirmationCode()
	p.bookings[id] = &reservation{offerRef: offerRef, confirmationCode: code}

	slog.InfoContext(ctx, "provider booking confirmed",
		"kind", p.kind, "offer_ref", offerRef, "booking_id", id)

	return adapter.BookResult{
		ExternalBookingID: id,
		ConfirmationCode:  code,
		Amount:            price * float64(party.Travelers),
		Currency:          p.currency,
	}, nil
}

func (p *InMemory) Modify(ctx context.Context, externalBookingID string, changes map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.bookings[externalBookingID]
	if !ok || res.cancelled {
		return "", fmt.Errorf("%s: booking %q: %w", p.kind, externalBookingID, adapter.ErrModificationRejected)
	}

	// Real providers reprice on modification; the simulator just reissues.
	res.confirmationCode = p.confirmationCode()

	slog.InfoContext(ctx, "provider booking modified",
		"kind", p.kind, "booking_id", externalBookingID, "changes", len(changes))

	return res.confirmationCode, nil
}

func (p *InMemory) Cancel(ctx context.Context, externalBookingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.bookings[externalBookingID]
	if !ok || res.cancelled {
		return fmt.Errorf("%s: booking %q: %w", p.kind, externalBookingID, adapter.ErrCancellationRejected)
	}
	res.cancelled = true

	slog.InfoContext(ctx, "provider booking cancelled",
		"kind", p.kind, "booking_id", externalBookingID)

	return nil
}

func (p *InMemory) confirmationCode() string {
	short := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%s", strings.ToUpper(string(p.kind))[:2], short)
}
