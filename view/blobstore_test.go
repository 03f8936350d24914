package view

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimble-ledger/nimble/receipt"
)

// fakeBlobClient is an in-memory stand-in for the datatrails azblob client,
// just enough to exercise BlobStore's create-only append semantics.
type fakeBlobClient struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobClient() *fakeBlobClient {
	return &fakeBlobClient{blobs: make(map[string][]byte)}
}

func (f *fakeBlobClient) Put(_ context.Context, identity string, content io.ReadSeekCloser, _ ...azblob.Option) (*azblob.WriteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.blobs[identity]; exists {
		return nil, errors.New("fakeBlobClient: blob already exists")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.blobs[identity] = data
	return &azblob.WriteResponse{}, nil
}

func (f *fakeBlobClient) Reader(_ context.Context, identity string, _ ...azblob.Option) (*azblob.ReaderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[identity]
	if !ok {
		return nil, errors.New("fakeBlobClient: blob not found")
	}
	return &azblob.ReaderResponse{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestBlobStoreAppendAndGetEntry(t *testing.T) {
	ctx := context.Background()
	client := newFakeBlobClient()
	store := NewBlobStore(client, "deployments/dep-1/view")

	height, err := store.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)

	genesis := Block{Index: 0, Quorum: 1}
	genesisBytes, err := genesis.Encode()
	require.NoError(t, err)
	require.NoError(t, store.AppendEntry(ctx, Entry{Index: 0, Block: genesisBytes}))

	kp := mustKeyPair(t)
	attested := receipt.Set{{ViewIndex: 0, Endorser: kp.PublicKey(), Signature: kp.Sign(kp.PublicKey().Bytes())}}
	require.NoError(t, store.AppendEntry(ctx, Entry{Index: 1, Block: genesisBytes, Attestations: attested}))

	height, err = store.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), height)

	got, err := store.GetEntry(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Index)
	decodedBlock, err := DecodeBlock(got.Block)
	require.NoError(t, err)
	assert.Equal(t, genesis.Quorum, decodedBlock.Quorum)

	got1, err := store.GetEntry(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got1.Attestations, 1)
	assert.True(t, got1.Attestations[0].Endorser.Equal(kp.PublicKey()))
}

func TestBlobStoreRejectsDuplicateAppend(t *testing.T) {
	ctx := context.Background()
	client := newFakeBlobClient()
	store := NewBlobStore(client, "deployments/dep-1/view")

	require.NoError(t, store.AppendEntry(ctx, Entry{Index: 0}))
	assert.Error(t, store.AppendEntry(ctx, Entry{Index: 0}))
}

func TestBlobStoreGetEntryNotFound(t *testing.T) {
	ctx := context.Background()
	client := newFakeBlobClient()
	store := NewBlobStore(client, "deployments/dep-1/view")

	_, err := store.GetEntry(ctx, 5)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
