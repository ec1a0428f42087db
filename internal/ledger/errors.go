package ledger

import "errors"

var (
	// ErrInsufficientCredits is returned when a reservation would push the
	// available balance below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrUnknownReservation is returned by Commit when no reservation exists
	// for the key and nothing was committed under it before.
	ErrUnknownReservation = errors.New("no reservation for key")

	// ErrInvalidAmount is returned for zero or negative charges and grants.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrKeyRequired is returned when an operation is missing its idempotency key.
	ErrKeyRequired = errors.New("idempotency key is required")
)
