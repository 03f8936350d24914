package signing

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

// PublicKeySize is the width, in bytes, of a compressed Ed25519 public key.
const PublicKeySize = ed25519.PublicKeySize

// PublicKey is a compressed 32-byte Ed25519 public key.
type PublicKey []byte

// Bytes returns the raw 32-byte compressed encoding.
func (pk PublicKey) Bytes() []byte {
	out := make([]byte, len(pk))
	copy(out, pk)
	return out
}

// Equal reports whether two public keys are byte-identical.
func (pk PublicKey) Equal(other PublicKey) bool {
	return ed25519.PublicKey(pk).Equal(ed25519.PublicKey(other))
}

// String renders the public key as lowercase hex, for logging.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// ToDER encodes the public key as a DER-encoded SubjectPublicKeyInfo, the
// alternate output format §6 requires.
func (pk PublicKey) ToDER() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(ed25519.PublicKey(pk))
	if err != nil {
		return nil, fmt.Errorf("signing: marshal public key to DER: %w", err)
	}
	return der, nil
}

// PublicKeyFromBytes validates and wraps a raw compressed public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("signing: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	pk := make(PublicKey, PublicKeySize)
	copy(pk, b)
	return pk, nil
}

// PublicKeyFromDER decodes a DER-encoded SubjectPublicKeyInfo produced by
// ToDER.
func PublicKeyFromDER(der []byte) (PublicKey, error) {
	raw, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("signing: parse DER public key: %w", err)
	}
	edPub, ok := raw.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("signing: DER key is not Ed25519")
	}
	return PublicKey(edPub), nil
}

// Verify checks sig against msg using this public key.
func (pk PublicKey) Verify(msg []byte, sig Signature) error {
	if len(pk) != PublicKeySize {
		return fmt.Errorf("signing: malformed public key (%d bytes)", len(pk))
	}
	if len(sig) != SignatureSize {
		return fmt.Errorf("signing: malformed signature (%d bytes)", len(sig))
	}
	if !ed25519.Verify(ed25519.PublicKey(pk), msg, []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}
