package ledger

import "errors"

// Error taxonomy for the wallet ledger. Handlers map these onto HTTP statuses;
// everything else is treated as an internal storage failure.
var (
	// ErrValidation covers malformed input and over-refund requests.
	ErrValidation = errors.New("validation error")

	// ErrInsufficientBalance is returned when a non-overdraft debit would
	// drive the wallet negative. The wallet is left unchanged.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrNotFound is returned for unknown transactions, users or gateway ids.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned on webhook signature or ownership mismatch.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrGateway is a retryable upstream payment-provider failure.
	ErrGateway = errors.New("payment gateway error")

	// ErrDuplicateEvent marks an idempotent webhook replay. It is logged and
	// acknowledged, never surfaced to the provider as a failure.
	ErrDuplicateEvent = errors.New("duplicate gateway event")
)
