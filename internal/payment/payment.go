// Package payment defines the payment capability the orchestrator depends
// on. The gateway wire protocol lives behind this interface; the
// orchestrator only ever creates intents and requests refunds.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrIntentNotFound is returned when a refund references an unknown intent.
var ErrIntentNotFound = errors.New("payment intent not found")

// Service is the capability interface consumed by the orchestrator.
type Service interface {
	// CreateIntent registers a payment intent for the given reference and
	// returns the gateway's intent id. Called once per submission, before
	// any leg is dispatched.
	CreateIntent(ctx context.Context, paymentRef string, userID string) (string, error)

	// Refund returns amount to the customer behind the intent.
	Refund(ctx context.Context, intentID string, amount float64) error
}

// InMemory is a gateway stand-in for local runs and tests.
type InMemory struct {
	mu       sync.Mutex
	intents  map[string]string  // intent id -> payment ref
	refunded map[string]float64 // intent id -> total refunded
}

var _ Service = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		intents:  make(map[string]string),
		refunded: make(map[string]float64),
	}
}

func (s *InMemory) CreateIntent(ctx context.Context, paymentRef, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.intents[id] = paymentRef

	slog.InfoContext(ctx, "payment intent created", "intent_id", id, "user_id", userID)
	return id, nil
}

func (s *InMemory) Refund(ctx context.Context, intentID string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.intents[intentID]; !ok {
		return fmt.Errorf("intent %q: %w", intentID, ErrIntentNotFound)
	}
	s.refunded[intentID] += amount

	slog.InfoContext(ctx, "payment refunded", "intent_id", intentID, "amount", amount)
	return nil
}

// Refunded reports the total amount refunded against an intent.
func (s *InMemory) Refunded(intentID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunded[intentID]
}
