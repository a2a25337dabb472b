package index

import (
	"context"
	"sync"
	"time"

	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"
)

// HistoryIndex maps a normalized identity to the content address of its
// latest history snapshot. It is the only mutable state in the ledger, so the
// pointer update must be linearizable: a bare read-then-write from concurrent
// callers silently loses appends.
type HistoryIndex interface {
	// Get returns the latest snapshot address for an identity, with found=false
	// for a never-seen identity.
	Get(ctx context.Context, identity string) (address string, found bool, err error)

	// CompareAndSwap atomically replaces the pointer for identity, but only if
	// it still equals oldAddress (empty oldAddress means "create; no entry may
	// exist yet"). A lost race returns store.ErrStalePointer and the caller
	// retries the whole append with a freshly fetched snapshot.
	CompareAndSwap(ctx context.Context, identity, oldAddress, newAddress string) error

	Close()
}

// MemoryIndex is a process-local HistoryIndex. Volatile: pointers are lost on
// restart, so it is only suitable for tests and single-process development.
type MemoryIndex struct {
	mu      sync.Mutex
	entries map[string]string
}

// Compile-time check: *MemoryIndex must satisfy HistoryIndex.
var _ HistoryIndex = (*MemoryIndex)(nil)

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]string)}
}

func (m *MemoryIndex) Get(_ context.Context, identity string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	address, found := m.entries[models.NormalizeIdentity(identity)]
	return address, found, nil
}

func (m *MemoryIndex) CompareAndSwap(_ context.Context, identity, oldAddress, newAddress string) error {
	key := models.NormalizeIdentity(identity)
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.entries[key]
	if oldAddress == "" {
		if exists {
			return store.ErrStalePointer
		}
		m.entries[key] = newAddress
		return nil
	}
	if !exists || current != oldAddress {
		return store.ErrStalePointer
	}
	m.entries[key] = newAddress
	return nil
}

func (m *MemoryIndex) Close() {}

// MemoryJournal is an in-process PendingJournal with the same semantics as
// the SQLite-backed one.
type MemoryJournal struct {
	mu      sync.Mutex
	nextId  int64
	entries []models.PendingWrite
}

// Compile-time check: *MemoryJournal must satisfy store.PendingJournal.
var _ store.PendingJournal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{nextId: 1}
}

func (j *MemoryJournal) Enqueue(_ context.Context, tx models.Transaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, models.PendingWrite{
		Id:          j.nextId,
		Transaction: tx,
		EnqueuedAt:  time.Now().UTC(),
	})
	j.nextId++
	return nil
}

func (j *MemoryJournal) List(_ context.Context, limit int) ([]models.PendingWrite, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit <= 0 || limit > len(j.entries) {
		limit = len(j.entries)
	}
	out := make([]models.PendingWrite, limit)
	copy(out, j.entries[:limit])
	return out, nil
}

func (j *MemoryJournal) ListByIdentity(_ context.Context, identity string) ([]models.PendingWrite, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.PendingWrite
	for _, entry := range j.entries {
		if entry.Transaction.Identity == models.NormalizeIdentity(identity) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (j *MemoryJournal) MarkAttempt(_ context.Context, id int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.entries {
		if j.entries[i].Id == id {
			j.entries[i].Attempts++
			return nil
		}
	}
	return nil
}

func (j *MemoryJournal) Delete(_ context.Context, id int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.entries {
		if j.entries[i].Id == id {
			j.entries = append(j.entries[:i], j.entries[i+1:]...)
			return nil
		}
	}
	return nil
}
