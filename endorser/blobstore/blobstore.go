// Package blobstore is a durable Store for the endorser package, backed
// by Azure Blob Storage the same way massifs/massifcommitter.go persists
// massif blobs: an etag-guarded read-modify-write so a racing writer
// never silently clobbers state it didn't observe.
package blobstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/datatrails/go-datatrails-common/azblob"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/endorser"
)

type blobClient interface {
	Put(ctx context.Context, identity string, content io.ReadSeekCloser, opts ...azblob.Option) (*azblob.WriteResponse, error)
	Reader(ctx context.Context, identity string, opts ...azblob.Option) (*azblob.ReaderResponse, error)
}

// Store is an endorser.Store backed by one blob per ledger handle.
type Store struct {
	client     blobClient
	pathPrefix string
}

// New returns a Store that keeps each handle's state under
// "<pathPrefix>/<handle>".
func New(client blobClient, pathPrefix string) *Store {
	return &Store{client: client, pathPrefix: pathPrefix}
}

func (s *Store) blobPath(handle digest.Digest) string {
	return fmt.Sprintf("%s/%s", s.pathPrefix, handle.String())
}

// Get reads the current state for handle, if any.
func (s *Store) Get(ctx context.Context, handle digest.Digest) (endorser.HandleState, bool, error) {
	rr, err := s.client.Reader(ctx, s.blobPath(handle))
	if err != nil {
		return endorser.HandleState{}, false, nil //nolint:nilerr // absent blob means "not found", not a failure
	}
	data, err := io.ReadAll(rr.Body)
	if err != nil {
		return endorser.HandleState{}, false, fmt.Errorf("blobstore: read handle state: %w", err)
	}
	st, err := decodeHandleState(data)
	if err != nil {
		return endorser.HandleState{}, false, err
	}
	return st, true, nil
}

// Put writes state for handle, guarded by the etag of whatever is
// currently there (or by WithEtagNoneMatch("*") when nothing is). The
// call does not return until the write has been acknowledged by the
// store, satisfying the "fsync before reply" durability requirement of
// §4.1: the caller's signature is only handed back after this returns.
func (s *Store) Put(ctx context.Context, handle digest.Digest, state endorser.HandleState) error {
	path := s.blobPath(handle)
	data := encodeHandleState(state)

	opt := azblob.WithEtagNoneMatch("*")
	if rr, err := s.client.Reader(ctx, path); err == nil && rr.ETag != nil {
		opt = azblob.WithEtagMatch(*rr.ETag)
	}

	if _, err := s.client.Put(ctx, path, azblob.NewBytesReaderCloser(data), opt); err != nil {
		return fmt.Errorf("blobstore: persist handle state: %w", err)
	}
	return nil
}

func encodeHandleState(st endorser.HandleState) []byte {
	out := make([]byte, digest.Size+8)
	copy(out, st.Tail.Bytes())
	binary.LittleEndian.PutUint64(out[digest.Size:], st.Height)
	return out
}

func decodeHandleState(data []byte) (endorser.HandleState, error) {
	if len(data) != digest.Size+8 {
		return endorser.HandleState{}, fmt.Errorf("blobstore: malformed handle state record")
	}
	tail, err := digest.FromBytes(data[:digest.Size])
	if err != nil {
		return endorser.HandleState{}, err
	}
	return endorser.HandleState{Tail: tail, Height: binary.LittleEndian.Uint64(data[digest.Size:])}, nil
}
