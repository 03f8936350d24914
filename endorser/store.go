package endorser

import (
	"context"
	"sync"

	"github.com/nimble-ledger/nimble/digest"
)

// HandleState is the durable state an endorser keeps per ledger handle:
// the chain tip and the height it was reached at (§3).
type HandleState struct {
	Tail   digest.Digest
	Height uint64
}

// Store persists per-handle endorser state. Implementations MUST make Put
// durable before returning: a crash between Put returning and the caller
// replying to the coordinator would otherwise let a retried append sign a
// second tail at the same height, violating invariant E1 (§4.1).
type Store interface {
	Get(ctx context.Context, handle digest.Digest) (HandleState, bool, error)
	Put(ctx context.Context, handle digest.Digest, state HandleState) error
}

// MemoryStore is a Store backed by an in-process map. It satisfies the
// durability contract trivially: Put returns only once the map has been
// updated under lock, so a concurrent Get can never observe a state Put
// hasn't finished committing.
type MemoryStore struct {
	mu      sync.RWMutex
	handles map[digest.Digest]HandleState
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{handles: make(map[digest.Digest]HandleState)}
}

func (s *MemoryStore) Get(_ context.Context, handle digest.Digest) (HandleState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.handles[handle]
	return st, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, handle digest.Digest, state HandleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[handle] = state
	return nil
}
