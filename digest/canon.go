package digest

import "encoding/binary"

// MessageType tags the kind of event a canonical signable message
// represents (§3). Values are deliberately 1-based so request/response
// pairs land on odd/even numbers.
type MessageType uint64

const (
	MessageNewCounterReq       MessageType = 1
	MessageNewCounterResp      MessageType = 2
	MessageIncrementCounterReq MessageType = 3
	MessageIncrementCounterResp MessageType = 4
	MessageReadCounterReq      MessageType = 5
	MessageReadCounterResp     MessageType = 6
)

// LE64 encodes n as 8 little-endian bytes, the integer encoding §3 and §6
// mandate for every multi-byte integer in a canonical message or wire value.
func LE64(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

// Canon computes the canonical digest of a sequence of fields: the
// dot-separated base64url encoding of each field, hashed with SHA3-256.
// This is the sole input to every in-protocol signature (§3, §9).
func Canon(fields ...[]byte) Digest {
	total := 0
	for i, f := range fields {
		total += base64EncodedLen(len(f))
		if i > 0 {
			total++
		}
	}
	buf := make([]byte, 0, total)
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, base64url(f)...)
	}
	return Sum(buf)
}

func base64EncodedLen(n int) int {
	return (n*8 + 5) / 6 // RawURLEncoding: ceil(n*8/6)
}

// NewLedgerMessage is the message an endorser signs when creating a ledger:
// hash(handle).
func NewLedgerMessage(handle Digest) Digest {
	return Canon(handle.Bytes())
}

// AppendMessage is the message an endorser signs on append:
// hash( hash(tailPrev ‖ blockDigest) ‖ nonce ‖ height_le ).
func AppendMessage(tailPrev, blockDigest Digest, nonce []byte, height uint64) (tailNew Digest, signed Digest) {
	tailNew = Concat(tailPrev.Bytes(), blockDigest.Bytes())
	signed = Canon(tailNew.Bytes(), nonce, LE64(height))
	return tailNew, signed
}

// ReadLatestMessage is the message an endorser signs on read_latest:
// hash(tail ‖ clientNonce).
func ReadLatestMessage(tail Digest, clientNonce []byte) Digest {
	return Canon(tail.Bytes(), clientNonce)
}

// CounterReqMessage builds the canonical NewCounterReq/IncrementCounterReq
// (or their Resp counterparts) message:
// msgtype ‖ groupID ‖ handle ‖ height ‖ tag.
func CounterReqMessage(mtype MessageType, groupID, handle Digest, height uint64, tag []byte) Digest {
	return Canon(LE64(uint64(mtype)), groupID.Bytes(), handle.Bytes(), LE64(height), tag)
}

// ReadCounterRespMessage builds the canonical ReadCounterResp message:
// msgtype=6 ‖ groupID ‖ handle ‖ height ‖ tag ‖ nonce.
func ReadCounterRespMessage(groupID, handle Digest, height uint64, tag, nonce []byte) Digest {
	return Canon(LE64(uint64(MessageReadCounterResp)), groupID.Bytes(), handle.Bytes(), LE64(height), tag, nonce)
}
