package view

import (
	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/signing"
)

// View is a single membership snapshot: its index (the value receipts
// carry in their view_index field), the endorser set, the quorum
// threshold in effect, and the digest of the block that produced it
// (§3, §4.2).
type View struct {
	Index   uint64
	Members []signing.PublicKey
	Quorum  int
	Digest  digest.Digest
}

// New derives the View at b.Index by applying b on top of the members of
// the immediately preceding view.
func New(prevMembers []signing.PublicKey, b Block) (View, error) {
	d, err := b.Digest()
	if err != nil {
		return View{}, err
	}
	return View{
		Index:   b.Index,
		Members: ApplyBlock(prevMembers, b),
		Quorum:  b.Quorum,
		Digest:  d,
	}, nil
}

// HasMember reports whether pk is a member of this view.
func (v View) HasMember(pk signing.PublicKey) bool {
	for _, m := range v.Members {
		if m.Equal(pk) {
			return true
		}
	}
	return false
}
