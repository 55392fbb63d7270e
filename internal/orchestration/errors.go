package orchestration

import "errors"

// User-visible errors returned by the orchestrator. Infrastructure failures
// (store unreachable, missing adapter) are returned as wrapped errors that
// match none of these sentinels.
var (
	// ErrNotFound: no orchestration exists for the given id.
	ErrNotFound = errors.New("orchestration not found")

	// ErrLegNotFound: the orchestration exists but has no such leg, or no
	// leg carries the given booking id.
	ErrLegNotFound = errors.New("booking leg not found")

	// ErrAlreadyCancelled rejects a duplicate cancel. A second cancel is an
	// explicit error rather than a silent no-op so refund accounting stays
	// auditable.
	ErrAlreadyCancelled = errors.New("booking already cancelled")

	// ErrInvalidRequest: the submission failed a precondition (empty
	// idempotency key, no legs, unknown service kind).
	ErrInvalidRequest = errors.New("invalid reservation request")
)
