package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/umlsync/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Export
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Export),
	}
}

// Save persists the export in memory.
func (s *Store) Save(ctx context.Context, sessionID string, data *domain.Export) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := data.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves the export from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}

	// Copy on read so callers can't mutate the stored export through the pointer
	return data.Clone(), nil
}

// Delete removes the export.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns stored sessions in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
