package signing

import (
	"crypto/ed25519"
	"encoding/asn1"
	"fmt"
	"math/big"
)

// SignatureSize is the width, in bytes, of a raw Ed25519 signature.
const SignatureSize = ed25519.SignatureSize

// Signature is a raw 64-byte Ed25519 signature.
type Signature []byte

// Bytes returns the raw 64-byte encoding.
func (s Signature) Bytes() []byte {
	out := make([]byte, len(s))
	copy(out, s)
	return out
}

// asn1Signature mirrors the R/S DER encoding the surrounding ecosystem uses
// for ECDSA signatures; Ed25519's 64-byte signature is split the same way
// into two fixed 32-byte halves so the DER alternate format round-trips.
type asn1Signature struct {
	R, S *big.Int
}

// ToDER encodes the signature as a DER SEQUENCE of two INTEGERs, the
// alternate output format §6 requires.
func (s Signature) ToDER() ([]byte, error) {
	if len(s) != SignatureSize {
		return nil, fmt.Errorf("signing: signature must be %d bytes, got %d", SignatureSize, len(s))
	}
	der, err := asn1.Marshal(asn1Signature{
		R: new(big.Int).SetBytes(s[:SignatureSize/2]),
		S: new(big.Int).SetBytes(s[SignatureSize/2:]),
	})
	if err != nil {
		return nil, fmt.Errorf("signing: marshal signature to DER: %w", err)
	}
	return der, nil
}

// SignatureFromBytes validates and wraps a raw 64-byte signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != SignatureSize {
		return nil, fmt.Errorf("signing: signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	sig := make(Signature, SignatureSize)
	copy(sig, b)
	return sig, nil
}

// SignatureFromDER decodes a DER-encoded signature produced by ToDER.
func SignatureFromDER(der []byte) (Signature, error) {
	var parsed asn1Signature
	rest, err := asn1.Unmarshal(der, &parsed)
	if err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("signing: parse DER signature: %w", err)
	}
	half := SignatureSize / 2
	sig := make(Signature, SignatureSize)
	r := parsed.R.Bytes()
	s := parsed.S.Bytes()
	if len(r) > half || len(s) > half {
		return nil, fmt.Errorf("signing: DER signature component too large")
	}
	copy(sig[half-len(r):half], r)
	copy(sig[SignatureSize-len(s):], s)
	return sig, nil
}
