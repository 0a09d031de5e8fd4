package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractExport(code string) *domain.Export {
	state := domain.NewEditorState()
	state.SetActors([]string{"User", "System"})
	state.Actions = []domain.Action{
		domain.NewMessage("User", "System", "login"),
		domain.NewLoop("retry", domain.NewMessage("System", "User", "ack")),
	}
	state.Code = code
	state.Title = "Login"
	return &domain.Export{
		Version:   domain.ExportVersion,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		State:     state,
		History:   []domain.Snapshot{state.Snapshot(time.Now().UTC().Truncate(time.Second))},
	}
}

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		data := contractExport("@startuml\nUser -> System: login\n@enduml")

		err := store.Save(ctx, sessionID, data)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		require.NotNil(t, loaded.State)
		assert.Equal(t, data.Version, loaded.Version)
		assert.Equal(t, data.State.Code, loaded.State.Code)
		assert.Equal(t, data.State.Actors, loaded.State.Actors)
		assert.Equal(t, "Login", loaded.State.Title)
		require.Len(t, loaded.State.Actions, 2)
		assert.Equal(t, "ack", loaded.State.Actions[1].Actions[0].Text)
		assert.Len(t, loaded.History, 1)
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.State.Actors[0] = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "User", again.State.Actors[0])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, contractExport("x"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, contractExport("a"))
		_ = store.Save(ctx, id2, contractExport("b"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
