package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound     = errors.New("not_found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid")
	// ErrMalformedTimestamp marks a stored created_at value that cannot be read back
	// as a calendar date. It aborts report generation.
	ErrMalformedTimestamp = errors.New("malformed_timestamp")
	// ErrDelivery is returned when a notification could not be handed to its transport.
	ErrDelivery = errors.New("delivery_failed")
	// ErrAmountOverflow is returned when a sum of amounts cannot be held exactly.
	ErrAmountOverflow = errors.New("amount_overflow")
)
