package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/umlsync/pkg/ports"
)

// Library adapts a Loam repository of markdown documents to ports.DiagramLibrary.
type Library struct {
	Repo *loam.TypedRepository[DiagramMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DiagramMetadata]) *Library {
	return &Library{
		Repo: repo,
	}
}

// Open initializes a Loam repository at dir without versioning.
func Open(dir string) (*Library, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath, loam.WithVersioning(false))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[DiagramMetadata](repo)), nil
}

// Get retrieves a diagram. Loam resolves "checkout" to checkout.md.
func (l *Library) Get(ctx context.Context, id string) (ports.Diagram, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		if !l.exists(ctx, id) {
			return ports.Diagram{}, fmt.Errorf("%w: %s", ports.ErrDiagramNotFound, id)
		}
		return ports.Diagram{}, fmt.Errorf("loam get failed for %s: %w", id, err)
	}

	rawID := doc.Data.ID
	if rawID == "" {
		rawID = doc.ID
	}
	return ports.Diagram{
		ID:    trimExtension(rawID),
		Title: doc.Data.Title,
		Tags:  slices.Clone(doc.Data.Tags),
		Code:  strings.TrimSpace(doc.Content),
	}, nil
}

func (l *Library) exists(ctx context.Context, id string) bool {
	ids, err := l.List(ctx)
	if err != nil {
		return true
	}
	return slices.Contains(ids, trimExtension(id))
}

// List lists all diagrams in the repository.
func (l *Library) List(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))

	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Save writes the diagram as <id>.md with its metadata as frontmatter.
func (l *Library) Save(ctx context.Context, d ports.Diagram) error {
	if d.ID == "" {
		return fmt.Errorf("diagram id is required")
	}
	id := trimExtension(d.ID)
	err := l.Repo.Save(ctx, &loam.DocumentModel[DiagramMetadata]{
		ID:      id,
		Content: d.Code,
		Data: DiagramMetadata{
			ID:    id,
			Title: d.Title,
			Tags:  d.Tags,
		},
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", id, err)
	}
	return nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch reports the IDs of diagrams changed on disk until ctx is done.
func (l *Library) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
