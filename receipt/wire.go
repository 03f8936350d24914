package receipt

import (
	"encoding/binary"
	"fmt"

	"github.com/nimble-ledger/nimble/signing"
)

// receiptWireSize is the fixed size of one encoded Receipt:
// 8 (view_index) + 32 (endorser public key) + 64 (signature).
const receiptWireSize = 8 + signing.PublicKeySize + signing.SignatureSize

// EncodeReceipt serializes a single receipt as view_index ‖ endorser_pk ‖
// signature (§3, §6).
func EncodeReceipt(r Receipt) ([]byte, error) {
	if len(r.Endorser) != signing.PublicKeySize {
		return nil, fmt.Errorf("receipt: endorser key must be %d bytes", signing.PublicKeySize)
	}
	if len(r.Signature) != signing.SignatureSize {
		return nil, fmt.Errorf("receipt: signature must be %d bytes", signing.SignatureSize)
	}
	out := make([]byte, receiptWireSize)
	binary.LittleEndian.PutUint64(out[:8], r.ViewIndex)
	copy(out[8:8+signing.PublicKeySize], r.Endorser)
	copy(out[8+signing.PublicKeySize:], r.Signature)
	return out, nil
}

// DecodeReceipt parses a single encoded receipt.
func DecodeReceipt(b []byte) (Receipt, error) {
	if len(b) != receiptWireSize {
		return Receipt{}, fmt.Errorf("receipt: encoded receipt must be %d bytes, got %d", receiptWireSize, len(b))
	}
	viewIndex := binary.LittleEndian.Uint64(b[:8])
	pk, err := signing.PublicKeyFromBytes(b[8 : 8+signing.PublicKeySize])
	if err != nil {
		return Receipt{}, err
	}
	sig, err := signing.SignatureFromBytes(b[8+signing.PublicKeySize:])
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{ViewIndex: viewIndex, Endorser: pk, Signature: sig}, nil
}

// EncodeByteStrings packs a sequence of byte strings into the
// length-prefixed array framing used for the `receipts` and `hash_nonces`
// RPC fields (§6): a 4-byte little-endian count, followed by each element
// as a 4-byte little-endian length and its bytes.
func EncodeByteStrings(items [][]byte) []byte {
	size := 4
	for _, it := range items {
		size += 4 + len(it)
	}
	out := make([]byte, 0, size)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(items)))
	out = append(out, hdr[:]...)
	for _, it := range items {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(it)))
		out = append(out, lenBuf[:]...)
		out = append(out, it...)
	}
	return out
}

// DecodeByteStrings unpacks a buffer produced by EncodeByteStrings.
func DecodeByteStrings(buf []byte) ([][]byte, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("receipt: truncated byte-string array")
	}
	count := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	items := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(buf) < 4 {
			return nil, fmt.Errorf("receipt: truncated byte-string array element %d", i)
		}
		n := binary.LittleEndian.Uint32(buf[:4])
		buf = buf[4:]
		if uint32(len(buf)) < n {
			return nil, fmt.Errorf("receipt: truncated byte-string array element %d", i)
		}
		item := make([]byte, n)
		copy(item, buf[:n])
		items = append(items, item)
		buf = buf[n:]
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("receipt: trailing bytes after byte-string array")
	}
	return items, nil
}

// EncodeSet serializes a Set as a length-prefixed array of encoded
// receipts.
func EncodeSet(s Set) ([]byte, error) {
	items := make([][]byte, len(s))
	for i, r := range s {
		enc, err := EncodeReceipt(r)
		if err != nil {
			return nil, err
		}
		items[i] = enc
	}
	return EncodeByteStrings(items), nil
}

// DecodeSet parses a Set from the wire format produced by EncodeSet.
func DecodeSet(buf []byte) (Set, error) {
	items, err := DecodeByteStrings(buf)
	if err != nil {
		return nil, err
	}
	out := make(Set, len(items))
	for i, it := range items {
		r, err := DecodeReceipt(it)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
