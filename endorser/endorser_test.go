package endorser

import (
	"context"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/receipt"
	"github.com/nimble-ledger/nimble/signing"
	"github.com/nimble-ledger/nimble/view"
)

func init() {
	logger.New("TEST")
}

func testLog() logger.Logger {
	return logger.Sugar.WithServiceName("endorser-test")
}

func mustKeyPair(t *testing.T) signing.KeyPair {
	t.Helper()
	kp, err := signing.Generate()
	require.NoError(t, err)
	return kp
}

func newTestEndorser(t *testing.T) (*Endorser, signing.KeyPair) {
	kp := mustKeyPair(t)
	return New(kp, NewMemoryStore(), testLog()), kp
}

func TestCreateLedgerThenLedgerExists(t *testing.T) {
	ctx := context.Background()
	e, kp := newTestEndorser(t)
	handle := digest.Sum([]byte("ledger-1"))

	sig, err := e.CreateLedger(ctx, handle)
	require.NoError(t, err)
	assert.NoError(t, kp.PublicKey().Verify(digest.NewLedgerMessage(handle).Bytes(), sig))

	_, err = e.CreateLedger(ctx, handle)
	assert.ErrorIs(t, err, ErrLedgerExists)
}

func TestReadLatestAfterCreate(t *testing.T) {
	ctx := context.Background()
	e, kp := newTestEndorser(t)
	handle := digest.Sum([]byte("ledger-1"))

	sig, err := e.CreateLedger(ctx, handle)
	require.NoError(t, err)
	wantTail := digest.Sum(sig.Bytes())

	nonce := []byte("client-nonce-0001")
	tail, height, readSig, err := e.ReadLatest(ctx, handle, nonce)
	require.NoError(t, err)
	assert.Equal(t, wantTail, tail)
	assert.Equal(t, uint64(0), height)
	assert.NoError(t, kp.PublicKey().Verify(digest.ReadLatestMessage(tail, nonce).Bytes(), readSig))
}

func TestReadLatestUnknownHandle(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEndorser(t)
	_, _, _, err := e.ReadLatest(ctx, digest.Sum([]byte("missing")), []byte("n"))
	assert.ErrorIs(t, err, ErrLedgerNotFound)
}

func TestAppendChainsTailAndAdvancesHeight(t *testing.T) {
	ctx := context.Background()
	e, kp := newTestEndorser(t)
	handle := digest.Sum([]byte("ledger-1"))

	_, err := e.CreateLedger(ctx, handle)
	require.NoError(t, err)

	block1 := digest.Sum([]byte("block-1"))
	res1, err := e.Append(ctx, handle, block1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res1.Height)
	wantTail1 := digest.Concat(res1.TailPrev.Bytes(), block1.Bytes())
	assert.Equal(t, wantTail1, res1.TailNew)

	_, signed1 := digest.AppendMessage(res1.TailPrev, block1, res1.EndorserNonce, res1.Height)
	assert.NoError(t, kp.PublicKey().Verify(signed1.Bytes(), res1.Signature))

	block2 := digest.Sum([]byte("block-2"))
	res2, err := e.Append(ctx, handle, block2, 2)
	require.NoError(t, err)
	assert.Equal(t, res1.TailNew, res2.TailPrev)
	assert.Equal(t, uint64(2), res2.Height)
}

func TestAppendRejectsWrongExpectedHeight(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEndorser(t)
	handle := digest.Sum([]byte("ledger-1"))
	_, err := e.CreateLedger(ctx, handle)
	require.NoError(t, err)

	_, err = e.Append(ctx, handle, digest.Sum([]byte("block")), 5)
	assert.ErrorIs(t, err, ErrInvalidHeight)
}

func TestAppendRejectsReplayAtSameHeightWithDifferentBlock(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEndorser(t)
	handle := digest.Sum([]byte("ledger-1"))
	_, err := e.CreateLedger(ctx, handle)
	require.NoError(t, err)

	_, err = e.Append(ctx, handle, digest.Sum([]byte("block-a")), 1)
	require.NoError(t, err)

	// Replaying at the same height again (whether same or different block)
	// is rejected because the current height has already advanced past it.
	_, err = e.Append(ctx, handle, digest.Sum([]byte("block-b")), 1)
	assert.ErrorIs(t, err, ErrInvalidHeight)
}

func TestAppendUnknownHandle(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEndorser(t)
	_, err := e.Append(ctx, digest.Sum([]byte("missing")), digest.Sum([]byte("b")), 1)
	assert.ErrorIs(t, err, ErrLedgerNotFound)
}

func TestApplyViewChangeGenesisThenMembership(t *testing.T) {
	ctx := context.Background()
	_ = ctx
	e, kp := newTestEndorser(t)

	genesis := view.Block{Index: 0, Quorum: 1}
	_, err := e.ApplyViewChange(context.Background(), genesis, nil, nil)
	require.NoError(t, err)

	selfAttestation := kp.SelfSign()
	membership := view.Block{Index: 1, Add: []signing.PublicKey{kp.PublicKey()}, Quorum: 1}
	attestations := receipt.Set{{Endorser: kp.PublicKey(), Signature: selfAttestation}}

	sig, err := e.ApplyViewChange(context.Background(), membership, nil, attestations)
	require.NoError(t, err)
	assert.NotNil(t, sig)
}

func TestApplyViewChangeRejectsMissingAttestationAtGenesisMembership(t *testing.T) {
	e, kp := newTestEndorser(t)
	_, err := e.ApplyViewChange(context.Background(), view.Block{Index: 0, Quorum: 1}, nil, nil)
	require.NoError(t, err)

	membership := view.Block{Index: 1, Add: []signing.PublicKey{kp.PublicKey()}, Quorum: 1}
	_, err = e.ApplyViewChange(context.Background(), membership, nil, nil)
	assert.ErrorIs(t, err, ErrAttestationMismatch)
}

func TestApplyViewChangeRejectsWithoutGenesis(t *testing.T) {
	e, kp := newTestEndorser(t)
	block := view.Block{Index: 2, Add: []signing.PublicKey{kp.PublicKey()}, Quorum: 1}
	_, err := e.ApplyViewChange(context.Background(), block, nil, nil)
	assert.ErrorIs(t, err, ErrViewLedgerNotInitialized)
}

func TestApplyViewChangeRequiresQuorumFromPreviousView(t *testing.T) {
	e, kp := newTestEndorser(t)
	other := mustKeyPair(t)

	_, err := e.ApplyViewChange(context.Background(), view.Block{Index: 0, Quorum: 1}, nil, nil)
	require.NoError(t, err)

	attestations := receipt.Set{{Endorser: kp.PublicKey(), Signature: kp.SelfSign()}}
	membership := view.Block{Index: 1, Add: []signing.PublicKey{kp.PublicKey()}, Quorum: 1}
	_, err = e.ApplyViewChange(context.Background(), membership, nil, attestations)
	require.NoError(t, err)

	// Index 2 needs quorum receipts from view 1's members over the new
	// view's digest; an empty receipt set must be rejected.
	addOther := view.Block{Index: 2, Add: []signing.PublicKey{other.PublicKey()}, Quorum: 2}
	_, err = e.ApplyViewChange(context.Background(), addOther, nil, nil)
	assert.Error(t, err)
}
