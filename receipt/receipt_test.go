package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/signing"
)

func mustKeyPair(t *testing.T) signing.KeyPair {
	t.Helper()
	kp, err := signing.Generate()
	require.NoError(t, err)
	return kp
}

func TestReceiptVerify(t *testing.T) {
	kp := mustKeyPair(t)
	msg := digest.Sum([]byte("event"))
	r := Receipt{ViewIndex: 1, Endorser: kp.PublicKey(), Signature: kp.Sign(msg.Bytes())}
	require.NoError(t, r.Verify(msg))

	other := digest.Sum([]byte("different event"))
	assert.Error(t, r.Verify(other))
}

func TestQuorumSucceedsAtThreshold(t *testing.T) {
	kp1 := mustKeyPair(t)
	kp2 := mustKeyPair(t)
	kp3 := mustKeyPair(t)
	members := []signing.PublicKey{kp1.PublicKey(), kp2.PublicKey(), kp3.PublicKey()}

	msg := digest.Sum([]byte("append event"))
	set := Set{
		{ViewIndex: 1, Endorser: kp1.PublicKey(), Signature: kp1.Sign(msg.Bytes())},
		{ViewIndex: 1, Endorser: kp2.PublicKey(), Signature: kp2.Sign(msg.Bytes())},
	}

	require.NoError(t, Quorum(set, msg, 1, members, 2))
	assert.ErrorIs(t, Quorum(set, msg, 1, members, 3), ErrInsufficientReceipts)
}

func TestQuorumIgnoresDuplicateEndorser(t *testing.T) {
	kp1 := mustKeyPair(t)
	kp2 := mustKeyPair(t)
	members := []signing.PublicKey{kp1.PublicKey(), kp2.PublicKey()}

	msg := digest.Sum([]byte("event"))
	set := Set{
		{ViewIndex: 1, Endorser: kp1.PublicKey(), Signature: kp1.Sign(msg.Bytes())},
		{ViewIndex: 1, Endorser: kp1.PublicKey(), Signature: kp1.Sign(msg.Bytes())}, // duplicate
	}

	assert.ErrorIs(t, Quorum(set, msg, 1, members, 2), ErrInsufficientReceipts)
}

func TestQuorumIgnoresWrongViewAndNonMembers(t *testing.T) {
	kp1 := mustKeyPair(t)
	kp2 := mustKeyPair(t)
	outsider := mustKeyPair(t)
	members := []signing.PublicKey{kp1.PublicKey(), kp2.PublicKey()}

	msg := digest.Sum([]byte("event"))
	set := Set{
		{ViewIndex: 2, Endorser: kp1.PublicKey(), Signature: kp1.Sign(msg.Bytes())}, // wrong view
		{ViewIndex: 1, Endorser: outsider.PublicKey(), Signature: outsider.Sign(msg.Bytes())}, // not a member
		{ViewIndex: 1, Endorser: kp2.PublicKey(), Signature: kp2.Sign(msg.Bytes())},
	}

	assert.ErrorIs(t, Quorum(set, msg, 1, members, 2), ErrInsufficientReceipts)
}

func TestReceiptWireRoundTrip(t *testing.T) {
	kp := mustKeyPair(t)
	msg := digest.Sum([]byte("event"))
	set := Set{
		{ViewIndex: 3, Endorser: kp.PublicKey(), Signature: kp.Sign(msg.Bytes())},
	}

	encoded, err := EncodeSet(set)
	require.NoError(t, err)

	decoded, err := DecodeSet(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, set[0].ViewIndex, decoded[0].ViewIndex)
	assert.True(t, set[0].Endorser.Equal(decoded[0].Endorser))
	assert.Equal(t, []byte(set[0].Signature), []byte(decoded[0].Signature))
}

func TestByteStringsRoundTrip(t *testing.T) {
	items := [][]byte{[]byte("a"), []byte("bb"), {}, []byte("dddd")}
	encoded := EncodeByteStrings(items)
	decoded, err := DecodeByteStrings(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(items))
	for i := range items {
		assert.Equal(t, items[i], decoded[i])
	}
}
