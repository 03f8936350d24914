package signing

// Identity is an endorser's public identity: its public key plus a
// self-signature over that public key (§3). The self-signature exists so
// an attested enclave measurement could later replace or augment it
// without a protocol change.
type Identity struct {
	PublicKey PublicKey
	SelfSig   Signature
}

// NewIdentity builds the Identity for kp, signing its own public key.
func NewIdentity(kp KeyPair) Identity {
	return Identity{
		PublicKey: kp.PublicKey(),
		SelfSig:   kp.SelfSign(),
	}
}

// Verify checks that SelfSig is a valid signature by PublicKey over
// PublicKey itself.
func (id Identity) Verify() error {
	return id.PublicKey.Verify(id.PublicKey.Bytes(), id.SelfSig)
}
