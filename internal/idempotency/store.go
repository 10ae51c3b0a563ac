package idempotency

import (
	"context"
	"sync"

	"zephyr-router/internal/types"
)

// Store guarantees at-most-one execution per idempotency key. Exactly one
// caller presenting an unseen key receives a Reservation; every other
// caller for that key waits for the reservation to commit and then gets
// the committed result.
type Store interface {
	// ReserveOrGet returns (result, nil, nil) on a hit, or (nil,
	// reservation, nil) when the caller won the key and must execute.
	ReserveOrGet(ctx context.Context, key string) (*types.TransactionResult, Reservation, error)
	// Reset drops every entry, including in-flight reservations.
	Reset(ctx context.Context) error
}

// Reservation finalizes one in-flight key. Commit makes the result visible
// to waiting and future callers; the entry is immutable afterwards.
type Reservation interface {
	Commit(ctx context.Context, result *types.TransactionResult) error
}

type memoryEntry struct {
	done   chan struct{}
	result *types.TransactionResult
}

// MemoryStore is the in-process Store. The critical section covers only
// the map lookup/insert; execution happens outside the lock, and losers
// park on the entry's done channel instead of blocking unrelated keys.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) ReserveOrGet(ctx context.Context, key string) (*types.TransactionResult, Reservation, error) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		entry = &memoryEntry{done: make(chan struct{})}
		s.entries[key] = entry
		s.mu.Unlock()
		return nil, &memoryReservation{entry: entry}, nil
	}
	s.mu.Unlock()

	select {
	case <-entry.done:
		return entry.result, nil, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*memoryEntry)
	return nil
}

type memoryReservation struct {
	entry *memoryEntry
}

func (r *memoryReservation) Commit(ctx context.Context, result *types.TransactionResult) error {
	r.entry.result = result
	close(r.entry.done)
	return nil
}
