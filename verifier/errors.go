package verifier

import "errors"

// Verification errors (§7). ViewNotFound is the one recoverable case: a
// caller may refresh its view ledger replay and retry once.
var (
	ErrViewNotFound          = errors.New("verifier: view not found")
	ErrInsufficientReceipts  = errors.New("verifier: insufficient receipts for quorum")
	ErrInvalidAttestation    = errors.New("verifier: missing or invalid attestation")
	ErrGroupIdentityMismatch = errors.New("verifier: view 0 digest does not match the bound group identity")
	ErrGroupIdentityNotSet   = errors.New("verifier: group identity not yet established")
	ErrInconsistentReceipts  = errors.New("verifier: receipts disagree on the underlying chain state")
)
