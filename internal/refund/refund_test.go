package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voyago/travel-sagas/internal/booking"
)

func TestQuotePolicyTable(t *testing.T) {
	tests := []struct {
		name       string
		kind       booking.ServiceKind
		amount     float64
		days       int
		wantFee    float64
		wantRefund float64
		wantReview bool
	}{
		{"flight same day is free", booking.KindFlight, 1000, 0, 0, 1000, false},
		{"flight day 5 pays 10%", booking.KindFlight, 1000, 5, 100, 900, false},
		{"flight day 6 still 10%", booking.KindFlight, 1000, 6, 100, 900, false},
		{"flight day 7 pays 25%", booking.KindFlight, 1000, 7, 250, 750, false},
		{"flight day 30 pays 25%", booking.KindFlight, 1000, 30, 250, 750, false},
		{"hotel day 1 is free", booking.KindHotel, 500, 1, 0, 500, false},
		{"hotel day 3 pays 15%", booking.KindHotel, 500, 3, 75, 425, false},
		{"activity same day is free", booking.KindActivity, 200, 0, 0, 200, false},
		{"activity day 1 pays 20%", booking.KindActivity, 200, 1, 40, 160, false},
		{"unknown kind falls back to highest rate", "cruise", 400, 2, 100, 300, true},
		{"negative age flagged for review", booking.KindFlight, 400, -1, 100, 300, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := DefaultPolicy.Quote(tt.kind, tt.amount, tt.days)
			assert.InDelta(t, tt.wantFee, q.Fee, 1e-9)
			assert.InDelta(t, tt.wantRefund, q.RefundAmount, 1e-9)
			assert.Equal(t, tt.wantReview, q.NeedsReview)
		})
	}
}

func TestQuoteRefundNeverNegative(t *testing.T) {
	over := Policy{booking.KindFlight: {{MinDays: 0, Rate: 1.5}}}
	q := over.Quote(booking.KindFlight, 100, 0)
	assert.InDelta(t, 0.0, q.RefundAmount, 1e-9)
}

func TestComputeDerivesAgeFromClock(t *testing.T) {
	bookedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	q := Compute(booking.KindFlight, 1000, bookedAt, bookedAt.Add(12*time.Hour))
	assert.InDelta(t, 0.0, q.Fee, 1e-9)

	q = Compute(booking.KindFlight, 1000, bookedAt, bookedAt.Add(5*24*time.Hour))
	assert.InDelta(t, 100.0, q.Fee, 1e-9)
	assert.InDelta(t, 900.0, q.RefundAmount, 1e-9)
}

func TestByName(t *testing.T) {
	p, err := ByName("")
	assert.NoError(t, err)
	assert.Nil(t, p, "no preference defers to the caller's default")

	p, err = ByName("standard")
	assert.NoError(t, err)
	assert.Equal(t, DefaultPolicy, p)

	p, err = ByName("flexible")
	assert.NoError(t, err)
	assert.Equal(t, FlexiblePolicy, p)

	_, err = ByName("platinum")
	assert.Error(t, err)
}

func TestFlexiblePolicyWaivesAllFees(t *testing.T) {
	for _, kind := range []booking.ServiceKind{booking.KindFlight, booking.KindHotel, booking.KindActivity} {
		q := FlexiblePolicy.Quote(kind, 1000, 30)
		assert.InDelta(t, 0.0, q.Fee, 1e-9, string(kind))
		assert.InDelta(t, 1000.0, q.RefundAmount, 1e-9, string(kind))
		assert.False(t, q.NeedsReview)
	}
}

func TestQuoteEmptyPolicyIsConservative(t *testing.T) {
	q := Policy{}.Quote(booking.KindHotel, 100, 3)
	assert.True(t, q.NeedsReview)
	// An empty table has no rates at all; the conservative fallback
	// charges nothing but still flags the record.
	assert.InDelta(t, 100.0, q.RefundAmount, 1e-9)
}
