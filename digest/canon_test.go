package digest

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonIsDottedBase64url(t *testing.T) {
	f1 := []byte("alpha")
	f2 := []byte("beta")

	got := Canon(f1, f2)

	want := Sum([]byte(strings.Join([]string{
		base64.RawURLEncoding.EncodeToString(f1),
		base64.RawURLEncoding.EncodeToString(f2),
	}, ".")))

	assert.Equal(t, want, got)
}

func TestCanonSingleFieldHasNoDot(t *testing.T) {
	handle := Sum([]byte("h1"))
	got := NewLedgerMessage(handle)
	want := Sum([]byte(base64.RawURLEncoding.EncodeToString(handle.Bytes())))
	assert.Equal(t, want, got)
}

func TestCounterReqMessageDistinguishesHeightAndType(t *testing.T) {
	groupID := Sum([]byte("group"))
	handle := Sum([]byte("handle"))
	tag := []byte("t0")

	m1 := CounterReqMessage(MessageNewCounterReq, groupID, handle, 0, tag)
	m2 := CounterReqMessage(MessageIncrementCounterReq, groupID, handle, 1, tag)
	assert.NotEqual(t, m1, m2)

	// Same fields, different message type must still diverge.
	m3 := CounterReqMessage(MessageNewCounterResp, groupID, handle, 0, tag)
	assert.NotEqual(t, m1, m3)
}

func TestAppendMessageChainsTail(t *testing.T) {
	tailPrev := Sum([]byte("prev"))
	blockDigest := Sum([]byte("block"))
	nonce := []byte("0123456789abcdef")

	tailNew, signed := AppendMessage(tailPrev, blockDigest, nonce, 1)
	assert.Equal(t, Concat(tailPrev.Bytes(), blockDigest.Bytes()), tailNew)

	tailNewAgain, signedAgain := AppendMessage(tailPrev, blockDigest, nonce, 1)
	assert.Equal(t, tailNew, tailNewAgain)
	assert.Equal(t, signed, signedAgain)

	_, signedDifferentHeight := AppendMessage(tailPrev, blockDigest, nonce, 2)
	assert.NotEqual(t, signed, signedDifferentHeight)
}
