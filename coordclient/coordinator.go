// Package coordclient implements the client side of a Nimble deployment:
// the Coordinator RPC surface consumed by a client (§6) and the
// request/response orchestrator that drives it (§4.3).
package coordclient

import (
	"context"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/receipt"
	"github.com/nimble-ledger/nimble/verifier"
	"github.com/nimble-ledger/nimble/view"
)

// NewLedgerResponse is the response to the new_ledger RPC (§6).
type NewLedgerResponse struct {
	Receipts receipt.Set
}

// AppendResponse is the response to the append RPC (§6).
type AppendResponse struct {
	Witnesses []verifier.AppendWitness
	Receipts  receipt.Set
}

// ReadLatestResponse is the response to the read_latest RPC (§6).
type ReadLatestResponse struct {
	Block     []byte
	Witnesses []verifier.ReadWitness
	Receipts  receipt.Set
}

// ReadViewByIndexResponse is the response to the read_view_by_index RPC.
type ReadViewByIndexResponse struct {
	Block    view.Block
	Receipts receipt.Set
}

// ReadViewTailResponse is the response to the read_view_tail RPC. Height
// is the view ledger's current height (one past the tail's index).
// Attestations carries the genesis (index 1) self-attestations regardless
// of how far the ledger has advanced since, so a client bootstrapping
// against a long-lived deployment can still validate view 1 without a
// second round trip.
type ReadViewTailResponse struct {
	Block        view.Block
	Receipts     receipt.Set
	Height       uint64
	Attestations receipt.Set
}

// Coordinator is the RPC surface a client drives (§6). The production
// transport (gRPC, HTTP, ...) is an external collaborator; this
// interface is what a generated or hand-written client stub must
// satisfy.
type Coordinator interface {
	NewLedger(ctx context.Context, handle digest.Digest, block []byte) (NewLedgerResponse, error)
	Append(ctx context.Context, handle digest.Digest, block []byte, expectedHeight uint64) (AppendResponse, error)
	ReadLatest(ctx context.Context, handle digest.Digest, clientNonce []byte) (ReadLatestResponse, error)
	ReadViewByIndex(ctx context.Context, index uint64) (ReadViewByIndexResponse, error)
	ReadViewTail(ctx context.Context) (ReadViewTailResponse, error)
	GetTimeoutMap(ctx context.Context) (map[string]uint64, error)
	PingAllEndorsers(ctx context.Context) error
	AddEndorsers(ctx context.Context, endorsers string) error
}
