// Package refund implements the cancellation fee calculator. It is a pure
// policy-table lookup with no I/O so the business rule can be unit tested
// and audited in isolation.
package refund

import (
	"fmt"
	"time"

	"github.com/voyago/travel-sagas/internal/booking"
)

// Tier is one row of the policy table: bookings at least MinDays old pay
// Rate of the original amount as a cancellation fee.
type Tier struct {
	MinDays int
	Rate    float64
}

// Policy maps a service kind to its fee tiers, ordered by ascending MinDays.
type Policy map[booking.ServiceKind][]Tier

// DefaultPolicy is the fixed business rule. Fees rise with booking age:
// cancelling shortly after booking is free, holding a reservation longer
// costs more to unwind.
var DefaultPolicy = Policy{
	booking.KindFlight: {
		{MinDays: 0, Rate: 0},
		{MinDays: 1, Rate: 0.10},
		{MinDays: 7, Rate: 0.25},
	},
	booking.KindHotel: {
		{MinDays: 0, Rate: 0},
		{MinDays: 2, Rate: 0.15},
	},
	booking.KindActivity: {
		{MinDays: 0, Rate: 0},
		{MinDays: 1, Rate: 0.20},
	},
}

// FlexiblePolicy waives every cancellation fee. Sold as an upgrade on
// flexible fares; selectable per cancellation request by name.
var FlexiblePolicy = Policy{
	booking.KindFlight:   {{MinDays: 0, Rate: 0}},
	booking.KindHotel:    {{MinDays: 0, Rate: 0}},
	booking.KindActivity: {{MinDays: 0, Rate: 0}},
}

// ByName resolves a caller-supplied policy selector. The empty string means
// "no preference" and resolves to nil so the caller's default applies.
func ByName(name string) (Policy, error) {
	switch name {
	case "":
		return nil, nil
	case "standard":
		return DefaultPolicy, nil
	case "flexible":
		return FlexiblePolicy, nil
	default:
		return nil, fmt.Errorf("unknown refund policy %q", name)
	}
}

// Quote is the outcome of a refund computation.
type Quote struct {
	FeeRate      float64
	Fee          float64
	RefundAmount float64

	// NeedsReview marks quotes where the policy had no applicable tier and
	// the most conservative rate was applied. Such refunds are flagged for
	// manual audit instead of silently guessing a lower fee.
	NeedsReview bool
}

// Quote computes the cancellation fee and refund for a booking of the given
// kind and age. Unknown kinds and negative ages fall back to the highest
// rate in the whole table and set NeedsReview.
func (p Policy) Quote(kind booking.ServiceKind, amount float64, daysSinceBooking int) Quote {
	tiers, ok := p[kind]
	if !ok || len(tiers) == 0 || daysSinceBooking < 0 {
		return p.conservative(amount)
	}

	rate := -1.0
	for _, t := range tiers {
		if daysSinceBooking >= t.MinDays {
			rate = t.Rate
		}
	}
	if rate < 0 {
		// Age below every tier's threshold: the table has a gap.
		return p.conservative(amount)
	}

	return quoteAt(amount, rate, false)
}

// conservative charges the highest rate found anywhere in the table.
func (p Policy) conservative(amount float64) Quote {
	max := 0.0
	for _, tiers := range p {
		for _, t := range tiers {
			if t.Rate > max {
				max = t.Rate
			}
		}
	}
	return quoteAt(amount, max, true)
}

func quoteAt(amount, rate float64, review bool) Quote {
	fee := amount * rate
	refundAmount := amount - fee
	if refundAmount < 0 {
		refundAmount = 0
	}
	return Quote{
		FeeRate:      rate,
		Fee:          fee,
		RefundAmount: refundAmount,
		NeedsReview:  review,
	}
}

// Compute quotes a refund under the default policy, deriving the booking age
// from wall-clock timestamps. now is a parameter so callers (and tests)
// control the clock.
func Compute(kind booking.ServiceKind, amount float64, bookedAt, now time.Time) Quote {
	days := int(now.Sub(bookedAt).Hours() / 24)
	return DefaultPolicy.Quote(kind, amount, days)
}
