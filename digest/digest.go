// Package digest implements the fixed-width SHA3-256 digests used
// throughout Nimble: ledger handles, chain tails, view identities and every
// value that gets signed.
package digest

import (
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// Size is the width, in bytes, of every Digest.
const Size = 32

// ErrWrongSize is returned when decoding a byte slice that isn't exactly
// Size bytes long.
var ErrWrongSize = errors.New("digest: wrong size")

// Digest is a fixed-width SHA3-256 output. All ledger handles, chain tails
// and canonical signable values are Digests.
type Digest [Size]byte

// Sum returns the SHA3-256 digest of data.
func Sum(data []byte) Digest {
	return Digest(sha3.Sum256(data))
}

// Concat hashes the concatenation of one or more byte strings, e.g.
// H(tailPrev ‖ blockDigest).
func Concat(parts ...[]byte) Digest {
	h := sha3.New256()
	for _, p := range parts {
		h.Write(p) //nolint:errcheck // hash.Hash.Write never errors
	}
	var d Digest
	h.Sum(d[:0])
	return d
}

// FromBytes copies b into a Digest, failing if b isn't exactly Size bytes.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, ErrWrongSize
	}
	copy(d[:], b)
	return d, nil
}

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

// String renders the digest as lowercase hex, for logging.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the all-zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// base64url encodes b the way the canonical message builder requires:
// unpadded, URL-safe base64.
func base64url(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
