package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/receipt"
	"github.com/nimble-ledger/nimble/signing"
	"github.com/nimble-ledger/nimble/view"
)

func mustKeyPair(t *testing.T) signing.KeyPair {
	t.Helper()
	kp, err := signing.Generate()
	require.NoError(t, err)
	return kp
}

func bootstrapGenesis(t *testing.T, s *State, members []signing.KeyPair, quorum int) view.View {
	t.Helper()

	genesisBlock := view.Block{Index: 0, Quorum: 0}
	require.NoError(t, s.ApplyViewChange(genesisBlock, nil, nil))

	pubs := make([]signing.PublicKey, len(members))
	attestations := make(receipt.Set, len(members))
	for i, kp := range members {
		pubs[i] = kp.PublicKey()
		attestations[i] = receipt.Receipt{Endorser: kp.PublicKey(), Signature: kp.SelfSign()}
	}
	membershipBlock := view.Block{Index: 1, Add: pubs, Quorum: quorum}
	require.NoError(t, s.ApplyViewChange(membershipBlock, nil, attestations))

	v1, ok := s.views[1]
	require.True(t, ok)
	return v1
}

func TestSetGroupIdentityIdempotentThenRejectsMismatch(t *testing.T) {
	s := New()
	gid := digest.Sum([]byte("group-1"))
	require.NoError(t, s.SetGroupIdentity(gid))
	require.NoError(t, s.SetGroupIdentity(gid))

	other := digest.Sum([]byte("group-2"))
	assert.ErrorIs(t, s.SetGroupIdentity(other), ErrGroupIdentityMismatch)
}

func TestApplyViewChangeGenesisMustMatchBoundIdentity(t *testing.T) {
	s := New()
	genesisBlock := view.Block{Index: 0}
	d, err := genesisBlock.Digest()
	require.NoError(t, err)
	require.NoError(t, s.SetGroupIdentity(d))

	assert.NoError(t, s.ApplyViewChange(genesisBlock, nil, nil))
}

func TestApplyViewChangeGenesisRejectsWrongIdentity(t *testing.T) {
	s := New()
	require.NoError(t, s.SetGroupIdentity(digest.Sum([]byte("expected"))))
	assert.ErrorIs(t, s.ApplyViewChange(view.Block{Index: 0}, nil, nil), ErrGroupIdentityMismatch)
}

func TestApplyViewChangeMembershipRequiresAttestation(t *testing.T) {
	s := New()
	kp := mustKeyPair(t)
	require.NoError(t, s.ApplyViewChange(view.Block{Index: 0}, nil, nil))

	membership := view.Block{Index: 1, Add: []signing.PublicKey{kp.PublicKey()}, Quorum: 1}
	err := s.ApplyViewChange(membership, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidAttestation)
}

func TestApplyViewChangeSkippingGenesisFails(t *testing.T) {
	s := New()
	kp := mustKeyPair(t)
	block := view.Block{Index: 1, Add: []signing.PublicKey{kp.PublicKey()}, Quorum: 1}
	assert.ErrorIs(t, s.ApplyViewChange(block, nil, nil), ErrViewNotFound)
}

func TestApplyViewChangeSucceedsWithQuorumFromPreviousView(t *testing.T) {
	s := New()
	kp1 := mustKeyPair(t)
	kp2 := mustKeyPair(t)
	v1 := bootstrapGenesis(t, s, []signing.KeyPair{kp1, kp2}, 1)

	kp3 := mustKeyPair(t)
	nextBlock := view.Block{Index: 2, Add: []signing.PublicKey{kp3.PublicKey()}, Quorum: 2}
	nextView, err := view.New(v1.Members, nextBlock)
	require.NoError(t, err)

	receipts := receipt.Set{{ViewIndex: 1, Endorser: kp1.PublicKey(), Signature: kp1.Sign(nextView.Digest.Bytes())}}
	require.NoError(t, s.ApplyViewChange(nextBlock, receipts, nil))
	assert.Equal(t, uint64(3), s.Height())
}

func TestApplyViewChangeRejectsInsufficientReceipts(t *testing.T) {
	s := New()
	kp1 := mustKeyPair(t)
	kp2 := mustKeyPair(t)
	bootstrapGenesis(t, s, []signing.KeyPair{kp1, kp2}, 2)

	kp3 := mustKeyPair(t)
	nextBlock := view.Block{Index: 2, Add: []signing.PublicKey{kp3.PublicKey()}, Quorum: 2}
	assert.ErrorIs(t, s.ApplyViewChange(nextBlock, nil, nil), ErrInsufficientReceipts)
}
