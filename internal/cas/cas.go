package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"neurosync-rewards-go/internal/store"
)

// ObjectStore is the narrow contract to the content-addressable store: put a
// blob, receive its content address; read a blob back by address. Blobs are
// immutable by construction, there is no update-in-place.
type ObjectStore interface {
	Put(ctx context.Context, blob []byte) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
}

// Address computes the content address of a blob: the hex SHA-256 of its
// bytes. The remote store uses the same derivation, which lets the in-memory
// backend stand in for it in tests.
func Address(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// MemoryStore is an in-process ObjectStore used in tests and as a last-resort
// local cache. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, blob []byte) (string, error) {
	address := Address(blob)
	m.mu.Lock()
	defer m.mu.Unlock()
	// Copy so a caller mutating its buffer cannot corrupt stored content.
	stored := make([]byte, len(blob))
	copy(stored, blob)
	m.blobs[address] = stored
	return address, nil
}

func (m *MemoryStore) Get(_ context.Context, address string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[address]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", store.ErrNotFound, address)
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
