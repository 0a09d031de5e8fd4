package ports

import (
	"context"

	"github.com/aretw0/umlsync/pkg/domain"
)

// SnapshotStore defines the interface for persisting editor exports.
// It backs periodic auto-backup and the session API.
type SnapshotStore interface {
	// Save persists the export for a given session ID.
	Save(ctx context.Context, sessionID string, data *domain.Export) error

	// Load retrieves the export for a given session ID.
	// Returns domain.ErrSnapshotNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Export, error)

	// Delete removes the export for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of stored sessions.
	List(ctx context.Context) ([]string, error)
}
