package ports

import (
	"context"
	"errors"
)

// ErrDiagramNotFound is returned by a DiagramLibrary for unknown IDs.
var ErrDiagramNotFound = errors.New("diagram not found")

// Diagram is a named description text kept in a library.
type Diagram struct {
	ID    string
	Title string
	Tags  []string
	Code  string
}

// DiagramLibrary defines where stored diagrams come from.
// This allows the storage layer (Loam, Memory) to be decoupled.
type DiagramLibrary interface {
	// Get retrieves a diagram by ID.
	Get(ctx context.Context, id string) (Diagram, error)

	// List returns the IDs of all diagrams in the library.
	List(ctx context.Context) ([]string, error)

	// Save stores or replaces a diagram.
	Save(ctx context.Context, d Diagram) error
}
