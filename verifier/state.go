// Package verifier implements the client-side Verifier State (VS) of
// §4.2: it replays the view ledger to learn the current endorser set and
// quorum policy, then validates receipts returned by the coordinator
// before a client accepts any counter value or signs a response.
package verifier

import (
	"fmt"
	"sync"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/receipt"
	"github.com/nimble-ledger/nimble/signing"
	"github.com/nimble-ledger/nimble/view"
)

// State is the shared Verifier State. Reads (the Verify* methods)
// acquire a read lease; ApplyViewChange and SetGroupIdentity take the
// write lease (§5).
type State struct {
	mu sync.RWMutex

	groupIdentity digest.Digest
	groupIDSet    bool

	views   map[uint64]view.View
	highest uint64
	hasAny  bool
}

// New returns an empty Verifier State, not yet bound to a deployment.
func New() *State {
	return &State{views: make(map[uint64]view.View)}
}

// SetGroupIdentity binds the VS to a deployment, once, at bootstrap. A
// second call with the same id is a no-op; a second call with a
// different id is rejected, since the group identity is the stable name
// of the deployment for the lifetime of this VS.
func (s *State) SetGroupIdentity(id digest.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupIDSet && s.groupIdentity != id {
		return fmt.Errorf("%w: already bound to %s", ErrGroupIdentityMismatch, s.groupIdentity)
	}
	s.groupIdentity = id
	s.groupIDSet = true
	return nil
}

// GroupIdentity returns the bound group identity, if any.
func (s *State) GroupIdentity() (digest.Digest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupIdentity, s.groupIDSet
}

// Height returns one past the highest view index this VS has installed.
func (s *State) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasAny {
		return 0
	}
	return s.highest + 1
}

// HasView reports whether index has already been installed.
func (s *State) HasView(index uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.views[index]
	return ok
}

// View returns the installed view at index, if any.
func (s *State) View(index uint64) (view.View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[index]
	return v, ok
}

// ApplyViewChange installs the view at block.Index, the only operation
// that adds views to a State (§4.2, §5). Index 0 is the view ledger's own
// genesis: its digest must match any group identity already bound, and
// neither receipts nor attestations are required. Index 1 requires an
// attestation from every endorser the block adds. Index ≥ 2 requires
// receipts meeting the immediately preceding view's quorum over the new
// view's digest.
func (s *State) ApplyViewChange(block view.Block, receipts receipt.Set, attestations receipt.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prevMembers []signing.PublicKey
	if block.Index > 0 {
		prev, ok := s.views[block.Index-1]
		if !ok {
			return ErrViewNotFound
		}
		prevMembers = prev.Members
	}

	newView, err := view.New(prevMembers, block)
	if err != nil {
		return fmt.Errorf("verifier: derive view %d: %w", block.Index, err)
	}

	switch {
	case block.Index == 0:
		if s.groupIDSet && s.groupIdentity != newView.Digest {
			return ErrGroupIdentityMismatch
		}
	case block.Index == 1:
		if err := verifyGenesisAttestations(newView, attestations); err != nil {
			return err
		}
	default:
		prev := s.views[block.Index-1]
		if err := receipt.Quorum(receipts, newView.Digest, prev.Index, prev.Members, prev.Quorum); err != nil {
			return fmt.Errorf("%w", ErrInsufficientReceipts)
		}
	}

	s.views[block.Index] = newView
	if !s.hasAny || block.Index > s.highest {
		s.highest = block.Index
		s.hasAny = true
	}
	return nil
}

func verifyGenesisAttestations(v view.View, attestations receipt.Set) error {
	attested := make(map[string]struct{}, len(attestations))
	for _, a := range attestations {
		if err := a.Endorser.Verify(a.Endorser.Bytes(), a.Signature); err != nil {
			continue
		}
		attested[string(a.Endorser.Bytes())] = struct{}{}
	}
	for _, m := range v.Members {
		if _, ok := attested[string(m.Bytes())]; !ok {
			return ErrInvalidAttestation
		}
	}
	return nil
}
