// Package receipt implements endorser attestations ("receipts"), their
// quorum validity rule, and the length-prefixed wire encoding used to move
// them between the coordinator and clients (§3, §6).
package receipt

import (
	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/signing"
)

// Receipt is a single endorser's attestation: the view it was issued
// under, the endorser's public key, and its signature over some canonical
// event digest.
type Receipt struct {
	ViewIndex uint64
	Endorser  signing.PublicKey
	Signature signing.Signature
}

// Verify checks that Signature is a valid signature by Endorser over msg.
func (r Receipt) Verify(msg digest.Digest) error {
	return r.Endorser.Verify(msg.Bytes(), r.Signature)
}

// Set is a collection of receipts attesting to the same logical event.
type Set []Receipt

// dedupByEndorser drops receipts whose endorser public key repeats,
// keeping the first occurrence. §9: "reject receipts with duplicate
// endorser public keys before counting toward quorum."
func (s Set) dedupByEndorser() Set {
	seen := make(map[string]struct{}, len(s))
	out := make(Set, 0, len(s))
	for _, r := range s {
		key := string(r.Endorser.Bytes())
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
