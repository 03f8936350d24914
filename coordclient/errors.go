package coordclient

import "errors"

// Transport/internal errors (§7): opaque to the caller, distinct from the
// verification errors they wrap. Idempotent operations may be retried by
// the caller; coordclient itself only ever retries a ViewNotFound once.
var (
	ErrNotBootstrapped        = errors.New("coordclient: verifier state not bootstrapped")
	ErrFailedToVerify         = errors.New("coordclient: failed to verify coordinator response")
	ErrFailedToCreateCounter  = errors.New("coordclient: failed to create counter")
	ErrFailedToIncrementCounter = errors.New("coordclient: failed to increment counter")
	ErrFailedToReadCounter    = errors.New("coordclient: failed to read counter")
	ErrInvalidCounterBlock    = errors.New("coordclient: counter block has an unrecognized layout")
)
