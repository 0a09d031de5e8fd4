package middleware_test

import (
	"context"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
// It keeps pointers as given so tests can inspect exactly what was saved.
type MockStore struct {
	data map[string]*domain.Export
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Export),
	}
}

func (s *MockStore) Save(ctx context.Context, sessionID string, export *domain.Export) error {
	s.data[sessionID] = export
	return nil
}

func (s *MockStore) Load(ctx context.Context, sessionID string) (*domain.Export, error) {
	export, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return export, nil
}

func (s *MockStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.data, sessionID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SnapshotStore = (*MockStore)(nil)
