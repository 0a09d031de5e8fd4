package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/umlsync/pkg/adapters/memory"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/ports"
	"github.com/aretw0/umlsync/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency and detects overlapping writes to the same session.
type SlowStore struct {
	data     map[string]*domain.Export
	mu       sync.Mutex
	inflight atomic.Int32
	overlaps atomic.Int32
	saves    atomic.Int32
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, export *domain.Export) error {
	if s.inflight.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	defer s.inflight.Add(-1)
	time.Sleep(5 * time.Millisecond) // Simulate IO

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]*domain.Export)
	}
	s.data[sessionID] = export
	s.saves.Add(1)
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Export, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()
	if export, ok := s.data[sessionID]; ok {
		return export, nil
	}
	return nil, domain.ErrSnapshotNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Save(ctx, id, &domain.Export{State: domain.NewEditorState()})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), store.overlaps.Load(), "writes to one session must be serialized")
	assert.Equal(t, int32(10), store.saves.Load())
}

func TestManager_LoadOrCreate(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			export, err := manager.LoadOrCreate(ctx, id)
			assert.NoError(t, err)
			assert.NotNil(t, export)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), store.saves.Load(), "only the first caller creates the session")
	export, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.InitialCode, export.State.Code)
	assert.Len(t, export.History, 1)
}

type failingStore struct{ ports.SnapshotStore }

func (failingStore) Load(ctx context.Context, sessionID string) (*domain.Export, error) {
	return nil, errors.New("connection refused")
}

func TestManager_LoadOrCreate_StoreError(t *testing.T) {
	manager := session.NewManager(failingStore{memory.NewStore()})
	_, err := manager.LoadOrCreate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check session existence")
}

func TestManager_Backup(t *testing.T) {
	store := memory.NewStore()
	manager := session.NewManager(store)
	ctx := context.Background()

	sink := manager.Backup("editor-1")
	state := domain.NewEditorState()
	state.Code = "actor A"
	require.NoError(t, sink(ctx, &domain.Export{Version: domain.ExportVersion, State: state}))

	loaded, err := store.Load(ctx, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, "actor A", loaded.State.Code)

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor-1"}, ids)
}

type recordingLocker struct {
	mu    sync.Mutex
	keys  []string
	ttls  []time.Duration
	fail  bool
	freed int
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, errors.New("lock busy")
	}
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, ttl)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.freed++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(memory.NewStore(),
		session.WithLocker(locker),
		session.WithLockTTL(5*time.Second),
	)
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "s1", &domain.Export{State: domain.NewEditorState()}))
	assert.Equal(t, []string{"s1"}, locker.keys)
	assert.Equal(t, []time.Duration{5 * time.Second}, locker.ttls)
	assert.Equal(t, 1, locker.freed)

	locker.fail = true
	err := manager.Delete(ctx, "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire distributed lock")
}
