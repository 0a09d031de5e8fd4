package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/umlsync/pkg/ports"
)

// Library implements ports.DiagramLibrary using an in-memory map.
type Library struct {
	mu       sync.RWMutex
	diagrams map[string]ports.Diagram
}

// NewLibrary creates a library seeded with description texts keyed by ID.
func NewLibrary(data map[string]string) *Library {
	diagrams := make(map[string]ports.Diagram, len(data))
	for id, code := range data {
		diagrams[id] = ports.Diagram{ID: id, Code: code}
	}
	return &Library{diagrams: diagrams}
}

// NewFromDiagrams creates a library from complete diagrams.
// This improves DX for tests that need titles and tags.
func NewFromDiagrams(diagrams ...ports.Diagram) *Library {
	l := &Library{diagrams: make(map[string]ports.Diagram, len(diagrams))}
	for _, d := range diagrams {
		l.diagrams[d.ID] = d
	}
	return l
}

// Get retrieves a diagram by ID.
func (l *Library) Get(ctx context.Context, id string) (ports.Diagram, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.diagrams[id]
	if !ok {
		return ports.Diagram{}, ports.ErrDiagramNotFound
	}
	d.Tags = slices.Clone(d.Tags)
	return d, nil
}

// List returns all diagram IDs.
func (l *Library) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.diagrams))
	for k := range l.diagrams {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}

// Save stores or replaces a diagram.
func (l *Library) Save(ctx context.Context, d ports.Diagram) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	d.Tags = slices.Clone(d.Tags)
	l.diagrams[d.ID] = d
	return nil
}
