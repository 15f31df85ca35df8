package keystore

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe, in-memory Store implementation. It backs
// unit tests and single-process deployments that do not need a shared cache.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	indexes map[string]map[string]struct{}
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    make(map[string][]byte),
		indexes: make(map[string]map[string]struct{}),
	}
}

// Get retrieves a stored value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	// Copy so callers cannot mutate the stored snapshot.
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set stores a value, overwriting any prior one.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = stored
	return nil
}

// Delete removes a key; deleting an absent key is a no-op. Index sets share
// the key space with snapshots, as they do in Redis, so deleting an index
// key removes the whole set.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	delete(s.indexes, key)
	return nil
}

// AddIndex records a member in an index set.
func (s *MemoryStore) AddIndex(_ context.Context, indexKey, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.indexes[indexKey]
	if !ok {
		set = make(map[string]struct{})
		s.indexes[indexKey] = set
	}
	set[member] = struct{}{}
	return nil
}

// RemoveIndex drops a member from an index set.
func (s *MemoryStore) RemoveIndex(_ context.Context, indexKey, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.indexes[indexKey]; ok {
		delete(set, member)
	}
	return nil
}

// ScanIndex returns every member of an index set. The batch size only shapes
// the Redis implementation's cursor; here the whole set is already local.
func (s *MemoryStore) ScanIndex(_ context.Context, indexKey string, _ int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.indexes[indexKey]
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	return members, nil
}

// IndexSize reports the cardinality of an index set.
func (s *MemoryStore) IndexSize(_ context.Context, indexKey string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.indexes[indexKey])), nil
}
