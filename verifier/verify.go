package verifier

import (
	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/receipt"
)

// AppendWitness carries the per-endorser auxiliary data needed to replay
// an append signature: the tail the endorser extended from and the
// per-receipt nonce it mixed into the signed message (§4.2, §6's
// `hash_nonces`). Witnesses and receipts are parallel arrays in the same
// order.
type AppendWitness struct {
	TailPrev digest.Digest
	Nonce    []byte
}

// ReadWitness carries the tail and height a read_latest receipt attests
// to (§6's `nonces` field of the read_latest response).
type ReadWitness struct {
	Tail   digest.Digest
	Height uint64
}

// VerifyNewLedger checks that receipts attest, under quorum, that handle
// was freshly created: every counted receipt must verify against the
// canonical NewLedger message for handle in the view its ViewIndex names.
func (s *State) VerifyNewLedger(handle digest.Digest, receipts receipt.Set) error {
	if len(receipts) == 0 {
		return ErrInsufficientReceipts
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.views[receipts[0].ViewIndex]
	if !ok {
		return ErrViewNotFound
	}
	msg := digest.NewLedgerMessage(handle)
	if err := receipt.Quorum(receipts, msg, v.Index, v.Members, v.Quorum); err != nil {
		return ErrInsufficientReceipts
	}
	return nil
}

// VerifyAppend checks that receipts attest, under quorum, to an append of
// blockDigest onto handle's chain at expectedHeight. Each receipt's
// signature covers a different message because each endorser mixes in
// its own nonce (§3 "Append"), so receipts are verified individually
// rather than against one shared digest.
func (s *State) VerifyAppend(handle digest.Digest, blockDigest digest.Digest, witnesses []AppendWitness, expectedHeight uint64, receipts receipt.Set) error {
	if len(receipts) == 0 || len(witnesses) != len(receipts) {
		return ErrInsufficientReceipts
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	viewIndex := receipts[0].ViewIndex
	v, ok := s.views[viewIndex]
	if !ok {
		return ErrViewNotFound
	}

	count := countDistinctVerified(receipts, viewIndex, v.Members, func(r receipt.Receipt) bool {
		i := indexOf(receipts, r)
		if i < 0 {
			return false
		}
		w := witnesses[i]
		_, signed := digest.AppendMessage(w.TailPrev, blockDigest, w.Nonce, expectedHeight)
		return r.Verify(signed) == nil
	})
	if count < v.Quorum {
		return ErrInsufficientReceipts
	}
	return nil
}

// VerifyReadLatest checks that receipts attest, under quorum, to handle
// currently sitting at the tail and height named by witnesses, and
// returns that height. All receipts must agree on the same tail and
// height: disagreement means the witnesses were tampered with or the
// endorsers disagree, either of which is rejected rather than guessed at.
func (s *State) VerifyReadLatest(handle digest.Digest, witnesses []ReadWitness, clientNonce []byte, receipts receipt.Set) (uint64, error) {
	if len(receipts) == 0 || len(witnesses) != len(receipts) {
		return 0, ErrInsufficientReceipts
	}
	first := witnesses[0]
	for _, w := range witnesses[1:] {
		if w.Tail != first.Tail || w.Height != first.Height {
			return 0, ErrInconsistentReceipts
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	viewIndex := receipts[0].ViewIndex
	v, ok := s.views[viewIndex]
	if !ok {
		return 0, ErrViewNotFound
	}

	msg := digest.ReadLatestMessage(first.Tail, clientNonce)
	if err := receipt.Quorum(receipts, msg, v.Index, v.Members, v.Quorum); err != nil {
		return 0, ErrInsufficientReceipts
	}
	return first.Height, nil
}

func indexOf(receipts receipt.Set, target receipt.Receipt) int {
	for i, r := range receipts {
		if r.ViewIndex == target.ViewIndex && r.Endorser.Equal(target.Endorser) &&
			string(r.Signature) == string(target.Signature) {
			return i
		}
	}
	return -1
}
