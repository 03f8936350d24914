package coordinator

import "errors"

var (
	ErrNoEndorsers        = errors.New("coordinator: at least one endorser is required")
	ErrQuorumUnreachable  = errors.New("coordinator: fewer endorsers responded than the configured quorum")
	ErrUnknownEndorser    = errors.New("coordinator: endorser not recognized by this deployment")
	ErrViewChangeInFlight = errors.New("coordinator: a view change is already in progress")
)
