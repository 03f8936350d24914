// Package coordinator implements a reference, in-process Coordinator
// (§2): it fans a client request out to every endorser in the current
// view, assembles the resulting receipts, assigns per-handle heights, and
// persists the view ledger. It satisfies coordclient.Coordinator, but is
// not a production RPC transport — the real network boundary (§6 Non-
// goals) is an external collaborator; this type exists so spec §8's
// round-trip properties are actually exercised end to end.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/nimble-ledger/nimble/coordclient"
	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/endorser"
	"github.com/nimble-ledger/nimble/internal/striped"
	"github.com/nimble-ledger/nimble/receipt"
	"github.com/nimble-ledger/nimble/signing"
	"github.com/nimble-ledger/nimble/verifier"
	"github.com/nimble-ledger/nimble/view"
)

// Endorser is the subset of an Endorser's behavior the Coordinator fans
// requests out to. A single process satisfies it directly with
// *endorser.Endorser; a networked deployment would satisfy it with an RPC
// stub sharing this same shape.
type Endorser interface {
	GetIdentity() signing.Identity
	CreateLedger(ctx context.Context, handle digest.Digest) (signing.Signature, error)
	ReadLatest(ctx context.Context, handle digest.Digest, clientNonce []byte) (digest.Digest, uint64, signing.Signature, error)
	Append(ctx context.Context, handle digest.Digest, blockDigest digest.Digest, expectedHeight uint64) (endorser.AppendResult, error)
	ApplyViewChange(ctx context.Context, block view.Block, priorReceipts receipt.Set, attestations receipt.Set) (signing.Signature, error)
	SignViewProposal(viewDigest digest.Digest) signing.Signature
}

type endorserHandle struct {
	client Endorser
	pk     signing.PublicKey
}

// Coordinator is a reference implementation of coordclient.Coordinator.
type Coordinator struct {
	log logger.Logger

	mu        sync.RWMutex
	endorsers []endorserHandle
	view      view.View

	viewStore view.Store
	locks     *striped.Locks

	heightsMu sync.Mutex
	heights   map[digest.Digest]uint64
	blocks    map[digest.Digest][]byte
}

var _ coordclient.Coordinator = (*Coordinator)(nil)

// New bootstraps a fresh deployment: it installs the view ledger's
// genesis (index 0) and the founding membership (index 1, quorum =
// len(endorsers) unless overridden) on every given endorser, persists
// both entries to viewStore, and returns a ready Coordinator.
func New(ctx context.Context, endorsers []Endorser, viewStore view.Store, opts ...Option) (*Coordinator, error) {
	if len(endorsers) == 0 {
		return nil, ErrNoEndorsers
	}
	o := options{quorum: len(endorsers)}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Coordinator{
		log:       o.log,
		viewStore: viewStore,
		locks:     striped.New(),
		heights:   make(map[digest.Digest]uint64),
		blocks:    make(map[digest.Digest][]byte),
	}
	for _, e := range endorsers {
		c.endorsers = append(c.endorsers, endorserHandle{client: e, pk: e.GetIdentity().PublicKey})
	}

	if err := c.installGenesis(ctx, o.quorum); err != nil {
		return nil, fmt.Errorf("coordinator: install genesis: %w", err)
	}
	return c, nil
}

func (c *Coordinator) installGenesis(ctx context.Context, quorum int) error {
	genesisBlock := view.Block{Index: 0, Quorum: 0}
	if err := c.installView(ctx, genesisBlock, nil, nil, c.endorsers); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}

	members := make([]signing.PublicKey, len(c.endorsers))
	attestations := make(receipt.Set, len(c.endorsers))
	for i, h := range c.endorsers {
		id := h.client.GetIdentity()
		members[i] = id.PublicKey
		attestations[i] = receipt.Receipt{Endorser: id.PublicKey, Signature: id.SelfSig}
	}
	membershipBlock := view.Block{Index: 1, Add: members, Quorum: quorum}
	if err := c.installView(ctx, membershipBlock, nil, attestations, c.endorsers); err != nil {
		return fmt.Errorf("founding membership: %w", err)
	}
	return nil
}

// installView installs block on every endorser in targets, persists the
// resulting entry, and advances c.view. receipts is the quorum of "prior
// view" votes required for index ≥ 2 (nil for 0 and 1); attestations is
// the set of self-attestations required for index 1 (nil otherwise).
func (c *Coordinator) installView(ctx context.Context, block view.Block, receipts receipt.Set, attestations receipt.Set, targets []endorserHandle) error {
	var prevMembers []signing.PublicKey
	c.mu.RLock()
	if block.Index > 0 {
		prevMembers = c.view.Members
	}
	c.mu.RUnlock()

	newView, err := view.New(prevMembers, block)
	if err != nil {
		return fmt.Errorf("derive view %d: %w", block.Index, err)
	}

	var firstSig signing.Signature
	for _, h := range targets {
		sig, err := h.client.ApplyViewChange(ctx, block, receipts, attestations)
		if err != nil {
			return fmt.Errorf("endorser rejected view %d: %w", block.Index, err)
		}
		if firstSig == nil {
			firstSig = sig
		}
	}

	entry := view.Entry{Index: block.Index, Receipts: receipts, Attestations: attestations}
	if entry.Block, err = block.Encode(); err != nil {
		return fmt.Errorf("encode view %d: %w", block.Index, err)
	}
	if err := c.viewStore.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("persist view %d: %w", block.Index, err)
	}

	c.mu.Lock()
	c.view = newView
	c.mu.Unlock()
	logger.Sugar.Debugf("coordinator: installed view index=%d members=%d", newView.Index, len(newView.Members))
	return nil
}

func (c *Coordinator) snapshotView() view.View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// NewLedger implements coordclient.Coordinator.
func (c *Coordinator) NewLedger(ctx context.Context, handle digest.Digest, block []byte) (coordclient.NewLedgerResponse, error) {
	v := c.snapshotView()
	var resp coordclient.NewLedgerResponse

	err := c.locks.WithErr(handleKey(handle), func() error {
		c.heightsMu.Lock()
		if _, exists := c.heights[handle]; exists {
			c.heightsMu.Unlock()
			return fmt.Errorf("coordinator: ledger %s already exists", handle)
		}
		c.heights[handle] = 0
		c.blocks[handle] = block
		c.heightsMu.Unlock()

		receipts := make(receipt.Set, 0, len(c.endorsers))
		for _, h := range c.endorsers {
			sig, err := h.client.CreateLedger(ctx, handle)
			if err != nil {
				return fmt.Errorf("endorser %s: %w", h.pk, err)
			}
			receipts = append(receipts, receipt.Receipt{ViewIndex: v.Index, Endorser: h.pk, Signature: sig})
		}
		resp = coordclient.NewLedgerResponse{Receipts: receipts}
		return nil
	})
	if err != nil {
		return coordclient.NewLedgerResponse{}, err
	}
	return resp, nil
}

// Append implements coordclient.Coordinator.
func (c *Coordinator) Append(ctx context.Context, handle digest.Digest, block []byte, expectedHeight uint64) (coordclient.AppendResponse, error) {
	v := c.snapshotView()
	var resp coordclient.AppendResponse
	blockDigest := digest.Sum(block)

	err := c.locks.WithErr(handleKey(handle), func() error {
		witnesses := make([]verifier.AppendWitness, 0, len(c.endorsers))
		receipts := make(receipt.Set, 0, len(c.endorsers))
		for _, h := range c.endorsers {
			res, err := h.client.Append(ctx, handle, blockDigest, expectedHeight)
			if err != nil {
				return fmt.Errorf("endorser %s: %w", h.pk, err)
			}
			witnesses = append(witnesses, verifier.AppendWitness{TailPrev: res.TailPrev, Nonce: res.EndorserNonce})
			receipts = append(receipts, receipt.Receipt{ViewIndex: v.Index, Endorser: h.pk, Signature: res.Signature})
		}

		c.heightsMu.Lock()
		c.heights[handle] = expectedHeight
		c.blocks[handle] = block
		c.heightsMu.Unlock()

		resp = coordclient.AppendResponse{Witnesses: witnesses, Receipts: receipts}
		return nil
	})
	if err != nil {
		return coordclient.AppendResponse{}, err
	}
	return resp, nil
}

// ReadLatest implements coordclient.Coordinator.
func (c *Coordinator) ReadLatest(ctx context.Context, handle digest.Digest, clientNonce []byte) (coordclient.ReadLatestResponse, error) {
	v := c.snapshotView()

	witnesses := make([]verifier.ReadWitness, 0, len(c.endorsers))
	receipts := make(receipt.Set, 0, len(c.endorsers))
	for _, h := range c.endorsers {
		tail, height, sig, err := h.client.ReadLatest(ctx, handle, clientNonce)
		if err != nil {
			return coordclient.ReadLatestResponse{}, fmt.Errorf("endorser %s: %w", h.pk, err)
		}
		witnesses = append(witnesses, verifier.ReadWitness{Tail: tail, Height: height})
		receipts = append(receipts, receipt.Receipt{ViewIndex: v.Index, Endorser: h.pk, Signature: sig})
	}

	c.heightsMu.Lock()
	block := c.blocks[handle]
	c.heightsMu.Unlock()

	return coordclient.ReadLatestResponse{Block: block, Witnesses: witnesses, Receipts: receipts}, nil
}

// ReadViewByIndex implements coordclient.Coordinator.
func (c *Coordinator) ReadViewByIndex(ctx context.Context, index uint64) (coordclient.ReadViewByIndexResponse, error) {
	entry, err := c.viewStore.GetEntry(ctx, index)
	if err != nil {
		return coordclient.ReadViewByIndexResponse{}, err
	}
	block, err := view.DecodeBlock(entry.Block)
	if err != nil {
		return coordclient.ReadViewByIndexResponse{}, fmt.Errorf("coordinator: decode view %d: %w", index, err)
	}
	return coordclient.ReadViewByIndexResponse{Block: block, Receipts: entry.Receipts}, nil
}

// ReadViewTail implements coordclient.Coordinator.
func (c *Coordinator) ReadViewTail(ctx context.Context) (coordclient.ReadViewTailResponse, error) {
	height, err := c.viewStore.Height(ctx)
	if err != nil {
		return coordclient.ReadViewTailResponse{}, err
	}
	if height == 0 {
		return coordclient.ReadViewTailResponse{}, fmt.Errorf("coordinator: view ledger is empty")
	}

	tail, err := c.viewStore.GetEntry(ctx, height-1)
	if err != nil {
		return coordclient.ReadViewTailResponse{}, err
	}
	block, err := view.DecodeBlock(tail.Block)
	if err != nil {
		return coordclient.ReadViewTailResponse{}, fmt.Errorf("coordinator: decode view tail: %w", err)
	}

	var genesisAttestations receipt.Set
	if height == 1 {
		genesisAttestations = tail.Attestations
	} else {
		genesis, err := c.viewStore.GetEntry(ctx, 1)
		if err != nil {
			return coordclient.ReadViewTailResponse{}, err
		}
		genesisAttestations = genesis.Attestations
	}

	return coordclient.ReadViewTailResponse{
		Block:        block,
		Receipts:     tail.Receipts,
		Height:       height,
		Attestations: genesisAttestations,
	}, nil
}

// GetTimeoutMap implements coordclient.Coordinator. The reference
// implementation has no liveness detector; it reports every endorser as
// reachable with a zero timeout budget consumed.
func (c *Coordinator) GetTimeoutMap(ctx context.Context) (map[string]uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]uint64, len(c.endorsers))
	for _, h := range c.endorsers {
		out[h.pk.String()] = 0
	}
	return out, nil
}

// PingAllEndorsers implements coordclient.Coordinator: it confirms every
// endorser is reachable and self-consistent by re-reading its identity.
func (c *Coordinator) PingAllEndorsers(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, h := range c.endorsers {
		if err := h.client.GetIdentity().Verify(); err != nil {
			return fmt.Errorf("coordinator: endorser %s failed self-check: %w", h.pk, err)
		}
	}
	return nil
}

// AddEndorsers implements coordclient.Coordinator: it is a placeholder
// pass-through for the RPC the Coordinator interface requires. Growing
// the membership with fresh Endorser instances (rather than an opaque
// connection string) is exposed via AddEndorserClients, since an
// in-process endorser has no string-addressable form (§2's coordinator is
// not a network service).
func (c *Coordinator) AddEndorsers(ctx context.Context, endorsers string) error {
	return fmt.Errorf("coordinator: add endorsers by connection string is not supported in-process; use AddEndorserClients")
}

// AddEndorserClients grows the deployment's membership: it replays the
// full view history onto each new endorser so its local state matches
// every already-installed view, then installs a new membership view
// adding them, voted on by the current membership under its own quorum.
func (c *Coordinator) AddEndorserClients(ctx context.Context, newEndorsers []Endorser) error {
	if len(newEndorsers) == 0 {
		return nil
	}

	current := c.snapshotView()
	for _, e := range newEndorsers {
		if err := c.replayViewHistory(ctx, e, current.Index); err != nil {
			return fmt.Errorf("coordinator: replay history for new endorser: %w", err)
		}
	}

	nextBlock := view.Block{Index: current.Index + 1, Quorum: current.Quorum}
	for _, e := range newEndorsers {
		nextBlock.Add = append(nextBlock.Add, e.GetIdentity().PublicKey)
	}
	digestD, err := nextBlock.Digest()
	if err != nil {
		return fmt.Errorf("coordinator: derive proposed view digest: %w", err)
	}

	c.mu.RLock()
	voters := c.endorsers
	c.mu.RUnlock()

	votes := make(receipt.Set, 0, len(voters))
	for _, h := range voters {
		votes = append(votes, receipt.Receipt{ViewIndex: current.Index, Endorser: h.pk, Signature: h.client.SignViewProposal(digestD)})
	}

	targets := append(append([]endorserHandle{}, voters...), toHandles(newEndorsers)...)
	if err := c.installView(ctx, nextBlock, votes, nil, targets); err != nil {
		return fmt.Errorf("coordinator: install expanded membership: %w", err)
	}

	c.mu.Lock()
	c.endorsers = targets
	c.mu.Unlock()
	return nil
}

// replayViewHistory installs every view from 0 up to and including
// upToIndex on a single new endorser, in ascending order, so it reaches
// the same state a founding endorser already has.
func (c *Coordinator) replayViewHistory(ctx context.Context, e Endorser, upToIndex uint64) error {
	for idx := uint64(0); idx <= upToIndex; idx++ {
		entry, err := c.viewStore.GetEntry(ctx, idx)
		if err != nil {
			return fmt.Errorf("read view %d: %w", idx, err)
		}
		block, err := view.DecodeBlock(entry.Block)
		if err != nil {
			return fmt.Errorf("decode view %d: %w", idx, err)
		}
		if _, err := e.ApplyViewChange(ctx, block, entry.Receipts, entry.Attestations); err != nil {
			return fmt.Errorf("apply view %d: %w", idx, err)
		}
	}
	return nil
}

func toHandles(endorsers []Endorser) []endorserHandle {
	out := make([]endorserHandle, len(endorsers))
	for i, e := range endorsers {
		out[i] = endorserHandle{client: e, pk: e.GetIdentity().PublicKey}
	}
	return out
}

func handleKey(handle digest.Digest) string {
	return string(handle.Bytes())
}
