package memory

import (
	"context"
	"sync"
)

// StateStore is an in-memory implementation of app.StateStore. Useful for
// tests and single-process deployments without Redis; state does not survive
// a restart.
type StateStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewStateStore() *StateStore {
	return &StateStore{blobs: make(map[string][]byte)}
}

func (s *StateStore) Set(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	return nil
}

func (s *StateStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *StateStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}
