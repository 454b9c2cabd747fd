package artifact

import (
	"context"
	"sync"
)

type memoryKey struct {
	job string
	fp  Fingerprint
}

// MemoryStore is an ephemeral Store for tests and dry runs. It is safe
// for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[memoryKey]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[memoryKey]string)}
}

// HasResult implements Cache.
func (s *MemoryStore) HasResult(_ context.Context, job string, fp Fingerprint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.results[memoryKey{job: job, fp: fp}]
	return ok, nil
}

// PutResult implements Store.
func (s *MemoryStore) PutResult(_ context.Context, job string, fp Fingerprint, outputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[memoryKey{job: job, fp: fp}] = outputPath
	return nil
}
