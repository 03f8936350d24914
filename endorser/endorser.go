// Package endorser implements the stateful signer at the heart of a
// Nimble deployment: it owns a long-lived key pair and a mapping from
// ledger handle to chain tail, and exposes the small set of mutating
// operations a coordinator drives on behalf of clients (§4.1).
package endorser

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/internal/striped"
	"github.com/nimble-ledger/nimble/receipt"
	"github.com/nimble-ledger/nimble/signing"
	"github.com/nimble-ledger/nimble/view"
)

const nonceSize = 16

// Endorser is the state machine of §4.1: identity, per-handle ledger
// state, and the deployment's current view as last installed by
// ApplyViewChange.
type Endorser struct {
	id       string
	keypair  signing.KeyPair
	identity signing.Identity
	store    Store
	locks    *striped.Locks
	log      logger.Logger

	viewMu      sync.Mutex // guards currentView across ApplyViewChange calls
	currentView *view.View
}

// New constructs an Endorser around kp, persisting per-handle state to
// store. log is kept on the Endorser; its debug trace points are written
// through the package-level logger.Sugar.
func New(kp signing.KeyPair, store Store, log logger.Logger) *Endorser {
	return &Endorser{
		id:       uuid.NewString(),
		keypair:  kp,
		identity: signing.NewIdentity(kp),
		store:    store,
		locks:    striped.New(),
		log:      log,
	}
}

// GetIdentity returns the endorser's public key and self-signature. Pure.
func (e *Endorser) GetIdentity() signing.Identity {
	return e.identity
}

func handleKey(handle digest.Digest) string {
	return string(handle.Bytes())
}

// CreateLedger creates a new ledger at handle, returning the endorser's
// signature over the canonical NewLedger message.
func (e *Endorser) CreateLedger(ctx context.Context, handle digest.Digest) (signing.Signature, error) {
	var sig signing.Signature
	err := e.locks.WithErr(handleKey(handle), func() error {
		_, exists, err := e.store.Get(ctx, handle)
		if err != nil {
			return fmt.Errorf("endorser: read ledger state: %w", err)
		}
		if exists {
			return ErrLedgerExists
		}

		msg := digest.NewLedgerMessage(handle)
		sig = e.keypair.Sign(msg.Bytes())
		tail := digest.Sum(sig.Bytes())

		if err := e.store.Put(ctx, handle, HandleState{Tail: tail, Height: 0}); err != nil {
			return fmt.Errorf("endorser: persist new ledger: %w", err)
		}
		logger.Sugar.Debugf("endorser: created ledger handle=%s", handle)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// ReadLatest returns the current tail and height of handle, along with a
// signature binding them to clientNonce so the response can't be replayed
// against a different reader. Pure: it mutates no state, so it takes no
// per-handle lock (§4.1, §5 "lock-free reads").
func (e *Endorser) ReadLatest(ctx context.Context, handle digest.Digest, clientNonce []byte) (digest.Digest, uint64, signing.Signature, error) {
	st, exists, err := e.store.Get(ctx, handle)
	if err != nil {
		return digest.Digest{}, 0, nil, fmt.Errorf("endorser: read ledger state: %w", err)
	}
	if !exists {
		return digest.Digest{}, 0, nil, ErrLedgerNotFound
	}
	msg := digest.ReadLatestMessage(st.Tail, clientNonce)
	sig := e.keypair.Sign(msg.Bytes())
	return st.Tail, st.Height, sig, nil
}

// AppendResult carries everything an endorser returns from a successful
// Append, mirroring the append RPC response fields of §6.
type AppendResult struct {
	TailPrev     digest.Digest
	TailNew      digest.Digest
	EndorserNonce []byte
	Height       uint64
	Signature    signing.Signature
}

// Append extends handle's chain with blockDigest at expectedHeight. The
// at-most-once guarantee of §4.1 is enforced by rejecting any
// expectedHeight other than current height + 1, under the per-handle
// lock, before anything is signed.
func (e *Endorser) Append(ctx context.Context, handle digest.Digest, blockDigest digest.Digest, expectedHeight uint64) (AppendResult, error) {
	var result AppendResult
	err := e.locks.WithErr(handleKey(handle), func() error {
		st, exists, err := e.store.Get(ctx, handle)
		if err != nil {
			return fmt.Errorf("endorser: read ledger state: %w", err)
		}
		if !exists {
			return ErrLedgerNotFound
		}
		if st.Height == math.MaxUint64 {
			return ErrLedgerHeightOverflow
		}
		if expectedHeight != st.Height+1 {
			return ErrInvalidHeight
		}

		nonce := make([]byte, nonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("endorser: draw endorser nonce: %w", err)
		}

		tailNew, signed := digest.AppendMessage(st.Tail, blockDigest, nonce, expectedHeight)
		sig := e.keypair.Sign(signed.Bytes())

		newState := HandleState{Tail: tailNew, Height: expectedHeight}
		if err := e.store.Put(ctx, handle, newState); err != nil {
			return fmt.Errorf("endorser: persist append: %w", err)
		}

		result = AppendResult{
			TailPrev:      st.Tail,
			TailNew:       tailNew,
			EndorserNonce: nonce,
			Height:        expectedHeight,
			Signature:     sig,
		}
		logger.Sugar.Debugf("endorser: appended handle=%s height=%d", handle, expectedHeight)
		return nil
	})
	if err != nil {
		return AppendResult{}, err
	}
	return result, nil
}

// ApplyViewChange validates and installs a new view (§4.1). Index 0 is
// the view ledger's own genesis and has no predecessor to validate
// against. Index 1 requires attestations: each endorser named in the
// block's Add list (this endorser among them, when it is named) must have
// self-signed its own public key. From index 2 onward, priorReceipts must meet the
// previous view's quorum over the new view's digest.
func (e *Endorser) ApplyViewChange(ctx context.Context, block view.Block, priorReceipts receipt.Set, attestations receipt.Set) (signing.Signature, error) {
	e.viewMu.Lock()
	defer e.viewMu.Unlock()

	var prevMembers []signing.PublicKey
	if e.currentView != nil {
		prevMembers = e.currentView.Members
	}
	newView, err := view.New(prevMembers, block)
	if err != nil {
		return nil, fmt.Errorf("endorser: derive view %d: %w", block.Index, err)
	}

	switch {
	case block.Index == 0:
		// Genesis of the view ledger itself; nothing precedes it.
	case block.Index == 1:
		if err := verifySelfAttestation(attestations, block.Add); err != nil {
			return nil, err
		}
	default:
		if e.currentView == nil {
			return nil, ErrViewLedgerNotInitialized
		}
		if err := receipt.Quorum(priorReceipts, newView.Digest, e.currentView.Index, e.currentView.Members, e.currentView.Quorum); err != nil {
			return nil, fmt.Errorf("endorser: validate view change receipts: %w", err)
		}
	}

	sig := e.keypair.Sign(newView.Digest.Bytes())
	e.currentView = &newView
	logger.Sugar.Debugf("endorser: applied view change index=%d members=%d", newView.Index, len(newView.Members))
	return sig, nil
}

// SignViewProposal signs viewDigest with this endorser's key, without
// touching its installed view. A coordinator collects these as the
// "prior view" votes §4.1's apply_view_change quorum check requires: a
// quorum of the CURRENT view's members must sign a proposed view's
// digest before any endorser, old or new, is asked to install it.
func (e *Endorser) SignViewProposal(viewDigest digest.Digest) signing.Signature {
	return e.keypair.Sign(viewDigest.Bytes())
}

func verifySelfAttestation(attestations receipt.Set, added []signing.PublicKey) error {
	for _, pk := range added {
		found := false
		for _, a := range attestations {
			if !a.Endorser.Equal(pk) {
				continue
			}
			if err := a.Endorser.Verify(a.Endorser.Bytes(), a.Signature); err != nil {
				return fmt.Errorf("%w: %s", ErrAttestationMismatch, err)
			}
			found = true
			break
		}
		if !found {
			return ErrAttestationMismatch
		}
	}
	return nil
}
