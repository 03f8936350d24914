package coordclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/receipt"
	"github.com/nimble-ledger/nimble/signing"
	"github.com/nimble-ledger/nimble/verifier"
	"github.com/nimble-ledger/nimble/view"
)

// Endpoint mediates between a caller, a Coordinator, and a Verifier
// State, implementing the issue/await/verify/sign state machine of §4.3.
type Endpoint struct {
	coord Coordinator
	vs    *verifier.State
	kp    signing.KeyPair
	log   logger.Logger
}

// NewEndpoint constructs an Endpoint and bootstraps its Verifier State by
// replaying the view ledger from scratch: it derives the group identity
// from view index 0 and backfills every view up to the coordinator's
// current tail, applying index 1's genesis attestations along the way.
func NewEndpoint(ctx context.Context, coord Coordinator, kp signing.KeyPair, log logger.Logger) (*Endpoint, error) {
	e := &Endpoint{coord: coord, vs: verifier.New(), kp: kp, log: log}
	if err := e.refreshViews(ctx); err != nil {
		return nil, fmt.Errorf("coordclient: bootstrap verifier state: %w", err)
	}
	return e, nil
}

// GetIdentity returns the client's own public key, known to callers
// out-of-band (§3).
func (e *Endpoint) GetIdentity() signing.PublicKey {
	return e.kp.PublicKey()
}

// PublicKeyFormat selects the wire encoding Identity returns a public key
// in.
type PublicKeyFormat int

const (
	PublicKeyFormatRaw PublicKeyFormat = iota
	PublicKeyFormatDER
)

// Identity returns the deployment's group identity together with this
// Endpoint's own public key, encoded per format.
func (e *Endpoint) Identity(format PublicKeyFormat) (digest.Digest, []byte, error) {
	groupID, ok := e.vs.GroupIdentity()
	if !ok {
		return digest.Digest{}, nil, ErrNotBootstrapped
	}
	switch format {
	case PublicKeyFormatRaw:
		return groupID, e.kp.PublicKey().Bytes(), nil
	case PublicKeyFormatDER:
		der, err := e.kp.PublicKey().ToDER()
		if err != nil {
			return digest.Digest{}, nil, fmt.Errorf("coordclient: encode public key: %w", err)
		}
		return groupID, der, nil
	default:
		return digest.Digest{}, nil, fmt.Errorf("coordclient: unknown public key format %d", format)
	}
}

// SignatureFormat selects the wire encoding a client-signed response
// signature is returned in (§9: raw or DER, the same alternate output
// formats the endorser/coordinator wire protocol supports).
type SignatureFormat int

const (
	SignatureFormatRaw SignatureFormat = iota
	SignatureFormatDER
)

func encodeSignature(sig signing.Signature, format SignatureFormat) ([]byte, error) {
	switch format {
	case SignatureFormatRaw:
		return sig.Bytes(), nil
	case SignatureFormatDER:
		der, err := sig.ToDER()
		if err != nil {
			return nil, fmt.Errorf("coordclient: encode signature: %w", err)
		}
		return der, nil
	default:
		return nil, fmt.Errorf("coordclient: unknown signature format %d", format)
	}
}

// refreshViews reads the coordinator's view tail, then fetches and
// applies every view between what this Endpoint already has and that
// tail, in ascending order so each view's predecessor is always already
// installed (§4.3 "refresh_views").
func (e *Endpoint) refreshViews(ctx context.Context) error {
	tail, err := e.coord.ReadViewTail(ctx)
	if err != nil {
		return fmt.Errorf("coordclient: read view tail: %w", err)
	}

	for idx := e.vs.Height(); idx < tail.Height; idx++ {
		block, receipts, err := e.fetchView(ctx, idx, tail)
		if err != nil {
			return err
		}

		var attestations receipt.Set
		if idx == 1 {
			attestations = tail.Attestations
		}
		if err := e.vs.ApplyViewChange(block, receipts, attestations); err != nil {
			return fmt.Errorf("coordclient: apply view %d: %w", idx, err)
		}
		if idx == 0 {
			if _, ok := e.vs.GroupIdentity(); !ok {
				v0, _ := e.vs.View(0)
				if err := e.vs.SetGroupIdentity(v0.Digest); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *Endpoint) fetchView(ctx context.Context, idx uint64, tail ReadViewTailResponse) (view.Block, receipt.Set, error) {
	if tail.Height > 0 && idx == tail.Height-1 {
		return tail.Block, tail.Receipts, nil
	}
	resp, err := e.coord.ReadViewByIndex(ctx, idx)
	if err != nil {
		return view.Block{}, nil, fmt.Errorf("coordclient: read view %d: %w", idx, err)
	}
	return resp.Block, resp.Receipts, nil
}

// verifyWithRetry runs verify, and on ErrViewNotFound refreshes views and
// retries exactly once (§4.3). A second ErrViewNotFound is terminal.
func (e *Endpoint) verifyWithRetry(ctx context.Context, verify func() error) error {
	err := verify()
	if !errors.Is(err, verifier.ErrViewNotFound) {
		return err
	}
	if refreshErr := e.refreshViews(ctx); refreshErr != nil {
		return refreshErr
	}
	err = verify()
	if errors.Is(err, verifier.ErrViewNotFound) {
		return fmt.Errorf("%w: %v", ErrFailedToVerify, err)
	}
	return err
}

// counterBlock builds the "tag ‖ client_signature" block layout of §4.3:
// the signature covers the canonical request message for (handle,
// height, tag), binding the block to whoever wrote it.
func (e *Endpoint) counterBlock(groupID, handle digest.Digest, height uint64, tag []byte, mtype digest.MessageType) []byte {
	msg := digest.CounterReqMessage(mtype, groupID, handle, height, tag)
	sig := e.kp.Sign(msg.Bytes())
	block := make([]byte, 0, len(tag)+len(sig))
	block = append(block, tag...)
	block = append(block, sig...)
	return block
}

// NewCounter creates a fresh counter at handle with initial value tag and
// height 0, returning the client's signature over the canonical
// NewCounterResp message, encoded per format.
func (e *Endpoint) NewCounter(ctx context.Context, handle digest.Digest, tag []byte, format SignatureFormat) ([]byte, error) {
	groupID, ok := e.vs.GroupIdentity()
	if !ok {
		return nil, ErrNotBootstrapped
	}

	block := e.counterBlock(groupID, handle, 0, tag, digest.MessageNewCounterReq)
	resp, err := e.coord.NewLedger(ctx, handle, block)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFailedToCreateCounter, err)
	}

	verify := func() error { return e.vs.VerifyNewLedger(handle, resp.Receipts) }
	if err := e.verifyWithRetry(ctx, verify); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFailedToCreateCounter, err)
	}

	respMsg := digest.CounterReqMessage(digest.MessageNewCounterResp, groupID, handle, 0, tag)
	sig, err := encodeSignature(e.kp.Sign(respMsg.Bytes()), format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFailedToCreateCounter, err)
	}
	return sig, nil
}

// IncrementCounter extends handle's chain with a new tag at
// expectedHeight, returning the client's signature over the canonical
// IncrementCounterResp message, encoded per format. expectedHeight must
// be exactly one past the counter's current height; any other value
// fails (§8 Monotonicity).
func (e *Endpoint) IncrementCounter(ctx context.Context, handle digest.Digest, tag []byte, expectedHeight uint64, format SignatureFormat) ([]byte, error) {
	groupID, ok := e.vs.GroupIdentity()
	if !ok {
		return nil, ErrNotBootstrapped
	}

	block := e.counterBlock(groupID, handle, expectedHeight, tag, digest.MessageIncrementCounterReq)
	resp, err := e.coord.Append(ctx, handle, block, expectedHeight)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFailedToIncrementCounter, err)
	}

	blockDigest := digest.Sum(block)
	verify := func() error {
		return e.vs.VerifyAppend(handle, blockDigest, resp.Witnesses, expectedHeight, resp.Receipts)
	}
	if err := e.verifyWithRetry(ctx, verify); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFailedToIncrementCounter, err)
	}

	respMsg := digest.CounterReqMessage(digest.MessageIncrementCounterResp, groupID, handle, expectedHeight, tag)
	sig, err := encodeSignature(e.kp.Sign(respMsg.Bytes()), format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFailedToIncrementCounter, err)
	}
	return sig, nil
}

// ReadCounter reads handle's current tag and height, authenticating both
// the endorser quorum (the chain) and the original writer (the block's
// embedded signature), then returns the client's signature over the
// canonical ReadCounterResp message, encoded per format.
func (e *Endpoint) ReadCounter(ctx context.Context, handle digest.Digest, clientNonce []byte, format SignatureFormat) ([]byte, uint64, []byte, error) {
	groupID, ok := e.vs.GroupIdentity()
	if !ok {
		return nil, 0, nil, ErrNotBootstrapped
	}

	resp, err := e.coord.ReadLatest(ctx, handle, clientNonce)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %s", ErrFailedToReadCounter, err)
	}

	var height uint64
	verify := func() error {
		h, verr := e.vs.VerifyReadLatest(handle, resp.Witnesses, clientNonce, resp.Receipts)
		height = h
		return verr
	}
	if err := e.verifyWithRetry(ctx, verify); err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %s", ErrFailedToReadCounter, err)
	}

	writerMsgType := digest.MessageNewCounterReq
	if height > 0 {
		writerMsgType = digest.MessageIncrementCounterReq
	}
	tag, err := splitCounterBlockWithTag(resp.Block, e.kp.PublicKey(), groupID, handle, height, writerMsgType)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %s", ErrFailedToReadCounter, err)
	}

	respMsg := digest.ReadCounterRespMessage(groupID, handle, height, tag, clientNonce)
	sig, err := encodeSignature(e.kp.Sign(respMsg.Bytes()), format)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %s", ErrFailedToReadCounter, err)
	}
	return tag, height, sig, nil
}

// splitCounterBlockWithTag extracts tag from block, then verifies the
// trailing signature against the canonical request message built from
// the recovered tag (the message's tag field can't be known until the
// block is split).
func splitCounterBlockWithTag(block []byte, writerKey signing.PublicKey, groupID, handle digest.Digest, height uint64, mtype digest.MessageType) ([]byte, error) {
	if len(block) < signing.SignatureSize {
		return nil, ErrInvalidCounterBlock
	}
	split := len(block) - signing.SignatureSize
	tag := block[:split]
	sig := signing.Signature(block[split:])
	msg := digest.CounterReqMessage(mtype, groupID, handle, height, tag)
	if err := writerKey.Verify(msg.Bytes(), sig); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCounterBlock, err)
	}
	return tag, nil
}
