// Package view implements view-ledger entries: membership snapshots of the
// endorser set plus the quorum policy that governs them (§3, §4.2).
package view

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/signing"
)

// Block is the opaque membership-change description carried by a view
// ledger entry: which endorsers are added or removed, and the quorum
// threshold that applies once the change takes effect.
type Block struct {
	Index  uint64              `cbor:"1,keyasint"`
	Add    []signing.PublicKey `cbor:"2,keyasint,omitempty"`
	Remove []signing.PublicKey `cbor:"3,keyasint,omitempty"`
	Quorum int                 `cbor:"4,keyasint"`
}

var (
	encModeOnce sync.Once
	encMode     cbor.EncMode
	encModeErr  error
)

func canonicalEncMode() (cbor.EncMode, error) {
	encModeOnce.Do(func() {
		encMode, encModeErr = cbor.CanonicalEncOptions().EncMode()
	})
	return encMode, encModeErr
}

// Encode serializes the block deterministically, so two implementations
// encoding the same Block always produce byte-identical output (needed
// because the block's digest becomes part of what endorsers sign).
func (b Block) Encode() ([]byte, error) {
	mode, err := canonicalEncMode()
	if err != nil {
		return nil, fmt.Errorf("view: build cbor encoder: %w", err)
	}
	out, err := mode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("view: encode block: %w", err)
	}
	return out, nil
}

// DecodeBlock parses a Block from bytes produced by Encode.
func DecodeBlock(raw []byte) (Block, error) {
	var b Block
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return Block{}, fmt.Errorf("view: decode block: %w", err)
	}
	return b, nil
}

// Digest returns the canonical digest of the encoded block. Index 0's
// digest is the group identity of the deployment (§3, invariant V1) and
// never changes once assigned.
func (b Block) Digest() (digest.Digest, error) {
	enc, err := b.Encode()
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.Sum(enc), nil
}

// ApplyBlock computes the new member set that results from applying b on
// top of prevMembers: removals first, then additions (skipping any
// endorser already present), preserving first-seen order.
func ApplyBlock(prevMembers []signing.PublicKey, b Block) []signing.PublicKey {
	removed := make(map[string]struct{}, len(b.Remove))
	for _, pk := range b.Remove {
		removed[string(pk.Bytes())] = struct{}{}
	}

	present := make(map[string]struct{}, len(prevMembers))
	members := make([]signing.PublicKey, 0, len(prevMembers)+len(b.Add))
	for _, pk := range prevMembers {
		if _, gone := removed[string(pk.Bytes())]; gone {
			continue
		}
		present[string(pk.Bytes())] = struct{}{}
		members = append(members, pk)
	}
	for _, pk := range b.Add {
		key := string(pk.Bytes())
		if _, ok := present[key]; ok {
			continue
		}
		present[key] = struct{}{}
		members = append(members, pk)
	}
	return members
}
