package view

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/datatrails/go-datatrails-common/azblob"

	"github.com/nimble-ledger/nimble/digest"
	"github.com/nimble-ledger/nimble/receipt"
)

// blobWriter and blobReader are the narrow slices of the datatrails azblob
// client that BlobStore needs, mirroring the split massifs draws between its
// committer and reader roles (massifs/massifcommitter.go,
// massifs/blobreader.go) rather than depending on the whole client.
type blobWriter interface {
	Put(ctx context.Context, identity string, content io.ReadSeekCloser, opts ...azblob.Option) (*azblob.WriteResponse, error)
}

type blobReader interface {
	Reader(ctx context.Context, identity string, opts ...azblob.Option) (*azblob.ReaderResponse, error)
}

type blobStorer interface {
	blobWriter
	blobReader
}

// BlobStore is a durable Store backed by Azure Blob Storage. Each entry is
// written to its own blob, one per deployment per view ledger index, and is
// never overwritten once committed: view ledger entries are append-only
// (§3), so unlike massifs' committer there is no etag-guarded update path,
// only an etag-guarded *create*.
type BlobStore struct {
	client     blobStorer
	pathPrefix string
}

// NewBlobStore returns a BlobStore that stores entries under
// "<pathPrefix>/<index>".
func NewBlobStore(client blobStorer, pathPrefix string) *BlobStore {
	return &BlobStore{client: client, pathPrefix: pathPrefix}
}

func (s *BlobStore) entryPath(index uint64) string {
	return fmt.Sprintf("%s/%016x", s.pathPrefix, index)
}

// Height scans forward from 0 until a read misses, returning the first
// absent index. Production deployments are expected to keep the height in
// a cache in front of this; BlobStore itself stays stateless so a
// coordinator restart never loses track of committed entries.
func (s *BlobStore) Height(ctx context.Context) (uint64, error) {
	var height uint64
	for {
		_, err := s.client.Reader(ctx, s.entryPath(height))
		if err != nil {
			return height, nil
		}
		height++
	}
}

func (s *BlobStore) GetEntry(ctx context.Context, index uint64) (Entry, error) {
	rr, err := s.client.Reader(ctx, s.entryPath(index))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, err)
	}
	data, err := io.ReadAll(rr.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("view: read blob entry %d: %w", index, err)
	}
	return decodeEntry(data)
}

// AppendEntry writes the entry to a fresh blob, failing if e.Index isn't
// the current Height or if a blob already exists at that path: the write
// is unconditional-create, guarded with azblob.WithEtagNoneMatch("*") the
// same way massifs/massifcommitter.go guards against racily recreating a
// blob.
func (s *BlobStore) AppendEntry(ctx context.Context, e Entry) error {
	height, err := s.Height(ctx)
	if err != nil {
		return err
	}
	if e.Index != height {
		return fmt.Errorf("view: out-of-order append, got index %d, expected %d", e.Index, height)
	}
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	_, err = s.client.Put(ctx, s.entryPath(e.Index), azblob.NewBytesReaderCloser(data), azblob.WithEtagNoneMatch("*"))
	if err != nil {
		return fmt.Errorf("view: commit entry %d: %w", e.Index, err)
	}
	return nil
}

// encodeEntry/decodeEntry reuse receipt's length-prefixed array framing
// (index ‖ block ‖ receipts ‖ attestations), so the wire shape of a
// persisted entry matches what a coordinator would send over RPC.
func encodeEntry(e Entry) ([]byte, error) {
	receiptsWire, err := receipt.EncodeSet(e.Receipts)
	if err != nil {
		return nil, err
	}
	attestationsWire, err := receipt.EncodeSet(e.Attestations)
	if err != nil {
		return nil, err
	}
	parts := [][]byte{digest.LE64(e.Index), e.Block, receiptsWire, attestationsWire}
	return receipt.EncodeByteStrings(parts), nil
}

func decodeEntry(raw []byte) (Entry, error) {
	parts, err := receipt.DecodeByteStrings(raw)
	if err != nil {
		return Entry{}, err
	}
	if len(parts) != 4 || len(parts[0]) != 8 {
		return Entry{}, fmt.Errorf("view: malformed entry record")
	}
	receipts, err := receipt.DecodeSet(parts[2])
	if err != nil {
		return Entry{}, err
	}
	attestations, err := receipt.DecodeSet(parts[3])
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Index:        binary.LittleEndian.Uint64(parts[0]),
		Block:        parts[1],
		Receipts:     receipts,
		Attestations: attestations,
	}, nil
}
