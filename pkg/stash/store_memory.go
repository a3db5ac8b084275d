package stash

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is a simple thread-safe in-memory store for testing and local
// development. It respects expiry on lookup but loses data on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	results []Result
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Sync is a no-op; there is nothing to reconcile.
func (s *MemoryStore) Sync(ctx context.Context) error {
	return nil
}

// All returns a copy of every record in insertion order.
func (s *MemoryStore) All(ctx context.Context) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.results), nil
}

// Insert assigns the next ID and appends the record.
func (s *MemoryStore) Insert(ctx context.Context, r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	s.results = append(s.results, *r)
	return nil
}

// FindOne returns a copy of the first record matching q, or nil.
func (s *MemoryStore) FindOne(ctx context.Context, q Query) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if q.Matches(r) {
			match := r
			return &match, nil
		}
	}
	return nil, nil
}

// RemoveWhere deletes records selected by pred.
func (s *MemoryStore) RemoveWhere(ctx context.Context, pred func(Result) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.results[:0]
	removed := 0
	for _, r := range s.results {
		if pred(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.results = kept
	return removed, nil
}

// RemoveIDs deletes records by ID.
func (s *MemoryStore) RemoveIDs(ctx context.Context, ids ...int64) error {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	_, err := s.RemoveWhere(ctx, func(r Result) bool {
		_, ok := drop[r.ID]
		return ok
	})
	return err
}
