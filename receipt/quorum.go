package receipt

import (
	"errors"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/signing"
)

// ErrInsufficientReceipts is returned when fewer than the required quorum
// of distinct, valid endorser receipts are present for an event (§7, §8).
var ErrInsufficientReceipts = errors.New("receipt: insufficient receipts for quorum")

// Quorum reports whether set contains at least threshold receipts, each
// from a distinct member of members, each referencing viewIndex, and each
// verifying against msg. Receipts with duplicate endorsers, receipts from a
// different view, and receipts from a non-member are ignored — they never
// count toward quorum but their presence alone is not an error.
func Quorum(set Set, msg digest.Digest, viewIndex uint64, members []signing.PublicKey, threshold int) error {
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[string(m.Bytes())] = struct{}{}
	}

	valid := 0
	for _, r := range set.dedupByEndorser() {
		if r.ViewIndex != viewIndex {
			continue
		}
		if _, ok := memberSet[string(r.Endorser.Bytes())]; !ok {
			continue
		}
		if err := r.Verify(msg); err != nil {
			continue
		}
		valid++
	}

	if valid < threshold {
		return ErrInsufficientReceipts
	}
	return nil
}
