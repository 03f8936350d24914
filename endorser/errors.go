package endorser

import "errors"

// Protocol/precondition errors (§7): non-retryable, returned unchanged to
// the coordinator.
var (
	ErrInvalidLedgerName     = errors.New("endorser: invalid ledger handle")
	ErrLedgerExists          = errors.New("endorser: ledger already exists")
	ErrLedgerNotFound        = errors.New("endorser: ledger not found")
	ErrInvalidHeight         = errors.New("endorser: expected height does not match current height")
	ErrLedgerHeightOverflow  = errors.New("endorser: ledger height would overflow")
	ErrViewLedgerNotInitialized = errors.New("endorser: view ledger not initialized")
	ErrAttestationMismatch   = errors.New("endorser: missing or invalid self-attestation")
)
