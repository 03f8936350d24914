// Package signing wraps Ed25519 key generation, signing and verification,
// and the raw / DER encodings §6 requires for public keys and signatures.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned by Verify when the signature does not
// verify against the given message and public key.
var ErrInvalidSignature = errors.New("signing: invalid signature")

// KeyPair is a long-lived Ed25519 signing key, the kind every endorser and
// every client holds exactly one of for its lifetime (§3).
type KeyPair struct {
	public  PublicKey
	private ed25519.PrivateKey
}

// Generate creates a fresh Ed25519 key pair using crypto/rand.
func Generate() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("signing: generate key pair: %w", err)
	}
	return KeyPair{public: PublicKey(pub), private: priv}, nil
}

// FromSeed reconstructs a KeyPair deterministically from a 32-byte seed,
// for key-file loaders (an external collaborator per spec §1) to use.
func FromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, fmt.Errorf("signing: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{public: PublicKey(pub), private: priv}, nil
}

// PublicKey returns the pair's public key.
func (kp KeyPair) PublicKey() PublicKey {
	return kp.public
}

// Sign signs msg and returns a raw 64-byte Signature.
func (kp KeyPair) Sign(msg []byte) Signature {
	return Signature(ed25519.Sign(kp.private, msg))
}

// SelfSign produces the endorser identity's self-signature over its own
// public key (§3, a placeholder for a future remote-attestation quote).
func (kp KeyPair) SelfSign() Signature {
	return kp.Sign(kp.public.Bytes())
}
