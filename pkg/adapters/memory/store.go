package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/playbook/pkg/domain"
)

// Store implements ports.ProgressStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.ProgressSnapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ProgressSnapshot),
	}
}

// Save replaces the snapshot stored under its key.
func (s *Store) Save(ctx context.Context, snap *domain.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.Key()] = snap.Clone()
	return nil
}

// Load returns a copy of the stored snapshot.
func (s *Store) Load(ctx context.Context, workflow, incident string) (*domain.ProgressSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[domain.SnapshotKey(workflow, incident)]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return snap.Clone(), nil
}

// Delete removes a snapshot. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, workflow, incident string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, domain.SnapshotKey(workflow, incident))
	return nil
}

// List returns every stored key in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns how many snapshots are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
