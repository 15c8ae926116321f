package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking
// infrastructure details. Validation outcomes of the verification flows are
// NOT errors; they are typed results returned by the services.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrDelivery means the mail/SMS gateway could not send. Retryable by
	// the caller; no flow state was advanced.
	ErrDelivery = errors.New("delivery failed")

	// ErrNotStarted and ErrNotVerified are recovery-flow ordering
	// violations: a later step was attempted without completing an earlier
	// one (or the continuation context expired).
	ErrNotStarted  = errors.New("recovery flow not started")
	ErrNotVerified = errors.New("recovery code not verified")
)
