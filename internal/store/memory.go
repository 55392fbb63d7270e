package store

import (
	"context"
	"sync"

	"github.com/voyago/travel-sagas/internal/booking"
)

// Memory is the reference Store implementation: a mutex-guarded map with
// copy-in/copy-out semantics so callers can never mutate stored state
// through a shared pointer.
type Memory struct {
	mu             sync.Mutex
	orchestrations map[string]*booking.Orchestration
	byBooking      map[string]string // external booking id -> orchestration id
	refunds        map[string]*booking.RefundRecord
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		orchestrations: make(map[string]*booking.Orchestration),
		byBooking:      make(map[string]string),
		refunds:        make(map[string]*booking.RefundRecord),
	}
}

func (m *Memory) CreateOrchestration(ctx context.Context, o *booking.Orchestration) (*booking.Orchestration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.orchestrations[o.ID]; ok {
		return cloneOrchestration(existing), false, nil
	}

	m.orchestrations[o.ID] = cloneOrchestration(o)
	m.indexLegs(o)
	return cloneOrchestration(o), true, nil
}

func (m *Memory) GetOrchestration(ctx context.Context, id string) (*booking.Orchestration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orchestrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrchestration(o), nil
}

func (m *Memory) UpdateOrchestration(ctx context.Context, o *booking.Orchestration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orchestrations[o.ID]; !ok {
		return ErrNotFound
	}
	m.orchestrations[o.ID] = cloneOrchestration(o)
	m.indexLegs(o)
	return nil
}

func (m *Memory) OrchestrationByBookingID(ctx context.Context, bookingID string) (*booking.Orchestration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byBooking[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrchestration(m.orchestrations[id]), nil
}

func (m *Memory) CreateRefund(ctx context.Context, rec *booking.RefundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.refunds[rec.BookingID]; ok {
		return ErrRefundExists
	}
	cp := *rec
	m.refunds[rec.BookingID] = &cp
	return nil
}

func (m *Memory) RefundByBookingID(ctx context.Context, bookingID string) (*booking.RefundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.refunds[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// indexLegs keeps the booking-id lookup in sync. Caller holds the lock.
func (m *Memory) indexLegs(o *booking.Orchestration) {
	for _, leg := range o.Legs {
		if leg.ExternalBookingID != "" {
			m.byBooking[leg.ExternalBookingID] = o.ID
		}
	}
}

func cloneOrchestration(o *booking.Orchestration) *booking.Orchestration {
	cp := *o
	cp.Requested = append([]booking.ServiceRequest(nil), o.Requested...)
	cp.Legs = append([]booking.BookingLeg(nil), o.Legs...)
	return &cp
}
