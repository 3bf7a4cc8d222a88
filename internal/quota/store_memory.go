package quota

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and for running without a
// database file. Counters reset on restart.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (s *MemoryStore) Counts(_ context.Context, dayKey, monthKey string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[dayKey], s.counts[monthKey], nil
}

func (s *MemoryStore) Increment(_ context.Context, dayKey, monthKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[dayKey]++
	s.counts[monthKey]++
	return nil
}
