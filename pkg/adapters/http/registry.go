package http

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/umlsync/internal/runtime"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/session"
	"github.com/google/uuid"
)

var streamedEvents = []domain.EventType{
	domain.EventUpdate,
	domain.EventError,
	domain.EventRestore,
	domain.EventReset,
	domain.EventImport,
}

// editorRegistry owns the live engines, one per session.
type editorRegistry struct {
	mu        sync.Mutex
	engines   map[string]*runtime.Engine
	newEngine func() *runtime.Engine
	sessions  *session.Manager
	streams   *StreamManager
	logger    *slog.Logger
}

func newEditorRegistry(newEngine func() *runtime.Engine, sessions *session.Manager, streams *StreamManager, logger *slog.Logger) *editorRegistry {
	return &editorRegistry{
		engines:   make(map[string]*runtime.Engine),
		newEngine: newEngine,
		sessions:  sessions,
		streams:   streams,
		logger:    logger,
	}
}

func (r *editorRegistry) create(ctx context.Context) (string, *runtime.Engine, error) {
	id := uuid.NewString()
	var export *domain.Export
	if r.sessions != nil {
		var err error
		if export, err = r.sessions.LoadOrCreate(ctx, id); err != nil {
			return "", nil, err
		}
	}
	eng, err := r.attach(id, export)
	if err != nil {
		return "", nil, err
	}
	return id, eng, nil
}

// get returns the live engine for id, restoring it from the store when needed.
func (r *editorRegistry) get(ctx context.Context, id string) (*runtime.Engine, error) {
	r.mu.Lock()
	eng, ok := r.engines[id]
	r.mu.Unlock()
	if ok {
		return eng, nil
	}
	if r.sessions == nil || id == "" {
		return nil, domain.ErrSnapshotNotFound
	}
	export, err := r.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.attach(id, export)
}

func (r *editorRegistry) attach(id string, export *domain.Export) (*runtime.Engine, error) {
	eng := r.newEngine()
	if export != nil {
		if err := eng.Import(export); err != nil {
			eng.Destroy()
			return nil, err
		}
	}

	r.mu.Lock()
	if existing, ok := r.engines[id]; ok {
		r.mu.Unlock()
		eng.Destroy()
		return existing, nil
	}
	r.engines[id] = eng
	r.mu.Unlock()

	for _, t := range streamedEvents {
		eng.On(t, func(ev domain.Event) error {
			msg, err := encodeEvent(ev)
			if err != nil {
				return err
			}
			r.streams.Broadcast(id, msg)
			return nil
		})
	}
	if r.sessions != nil {
		eng.StartAutoBackup(context.Background(), r.sessions.Backup(id), runtime.DefaultBackupInterval)
	}
	return eng, nil
}

func (r *editorRegistry) remove(ctx context.Context, id string) bool {
	r.mu.Lock()
	eng, ok := r.engines[id]
	delete(r.engines, id)
	r.mu.Unlock()

	if ok {
		eng.Destroy()
	}
	if r.sessions != nil {
		err := r.sessions.Delete(ctx, id)
		switch {
		case err == nil:
			return true
		case errors.Is(err, domain.ErrSnapshotNotFound):
		default:
			r.logger.Error("session delete failed", "session_id", id, "error", err)
		}
	}
	return ok
}

func (r *editorRegistry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.engines))
	for id := range r.engines {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// closeAll flushes each session to the store and destroys its engine.
func (r *editorRegistry) closeAll() {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[string]*runtime.Engine)
	r.mu.Unlock()

	for id, eng := range engines {
		eng.Destroy()
		if r.sessions == nil {
			continue
		}
		if err := r.sessions.Save(context.Background(), id, eng.Export()); err != nil {
			r.logger.Error("final session save failed", "session_id", id, "error", err)
		}
	}
}
