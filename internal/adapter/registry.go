package adapter

import (
	"fmt"

	"github.com/voyago/travel-sagas/internal/booking"
)

// Registry resolves a ServiceAdapter by service kind. It is built once at
// startup and handed to the orchestrator; there is no package-level
// registry, so wiring stays explicit and test doubles slot in trivially.
type Registry struct {
	adapters map[booking.ServiceKind]ServiceAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[booking.ServiceKind]ServiceAdapter)}
}

// Register binds an adapter to a kind, replacing any previous binding.
func (r *Registry) Register(kind booking.ServiceKind, a ServiceAdapter) {
	r.adapters[kind] = a
}

// Lookup returns the adapter for kind. A missing adapter is a wiring bug,
// surfaced as an infrastructure error rather than a leg failure.
func (r *Registry) Lookup(kind booking.ServiceKind) (ServiceAdapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for service kind %q", kind)
	}
	return a, nil
}
