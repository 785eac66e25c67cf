package store

import (
	"context"
	"sync"
)

// MemoryStore keeps run records in memory. Used by tests and as a default
// when no persistence is configured.
type MemoryStore struct {
	mu   sync.Mutex
	runs []RunRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// RecordRun appends a run record.
func (s *MemoryStore) RecordRun(_ context.Context, record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, record)
	return nil
}

// Runs returns a copy of all recorded runs.
func (s *MemoryStore) Runs() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]RunRecord, len(s.runs))
	copy(runs, s.runs)
	return runs
}
