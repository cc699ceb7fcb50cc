// Package store provides Scan persistence: an in-memory store for single
// instances and tests, a Redis store, and a PostgreSQL store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/complyops/autopilot/internal/scan"
)

// Compile-time check: *MemoryStore implements scan.Store.
var _ scan.Store = (*MemoryStore)(nil)

// MemoryStore keeps scans in process memory. It exists so the scan registry
// is an owned, injectable dependency rather than package-level mutable state.
type MemoryStore struct {
	mu    sync.RWMutex
	scans map[string]scan.Scan
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scans: make(map[string]scan.Scan)}
}

// Save upserts a scan record.
func (s *MemoryStore) Save(_ context.Context, job scan.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans[job.ID] = job
	return nil
}

// Get returns the scan by ID, or nil when unknown.
func (s *MemoryStore) Get(_ context.Context, id string) (*scan.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.scans[id]
	if !ok {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	return &job, nil
}

// List returns all scans, most recently started first.
func (s *MemoryStore) List(_ context.Context) ([]scan.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scan.Scan, 0, len(s.scans))
	for _, job := range s.scans {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
