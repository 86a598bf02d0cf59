package types

import "errors"

// Shared error taxonomy. Callers branch with errors.Is; the HTTP layer
// maps these onto status codes.
var (
	// ErrValidation marks bad input shape. Local, never retried.
	ErrValidation = errors.New("validation error")

	// ErrAuthentication marks a signature or identity mismatch.
	ErrAuthentication = errors.New("authentication error")

	// ErrAccessDenied marks a policy rejection for an authenticated caller.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound marks a missing record or missing content.
	ErrNotFound = errors.New("not found")

	// ErrTimeout marks a network operation that ran out of time.
	// Eligible for caller-driven retry, unlike ErrNotFound.
	ErrTimeout = errors.New("timeout")
)
