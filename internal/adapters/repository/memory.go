package repository

import (
	"context"
	"sync"
)

// MemoryStore implements Store with a plain map. Used in tests and when no
// badger directory is configured; records do not survive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Save persists the record for token.
func (s *MemoryStore) Save(_ context.Context, token string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[token] = rec
	return nil
}

// Load returns the record for token, validating the feature schema.
func (s *MemoryStore) Load(_ context.Context, token string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[token]
	if !ok || !rec.Baseline.Valid() {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record for token.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, token)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
