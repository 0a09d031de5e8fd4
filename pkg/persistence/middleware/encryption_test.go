package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/persistence/middleware"
	"github.com/aretw0/umlsync/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secretExport() *domain.Export {
	state := domain.NewEditorState()
	state.SetActors([]string{"User", "Vault"})
	state.Actions = []domain.Action{domain.NewMessage("User", "Vault", "token=my-secret-sauce")}
	state.Code = "@startuml\nUser -> Vault: token=my-secret-sauce\n@enduml"
	return &domain.Export{
		Version:   domain.ExportVersion,
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		State:     state,
		History:   []domain.Snapshot{state.Snapshot(time.Time{})},
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "test-session"
	original := secretExport()

	require.NoError(t, secureStore.Save(ctx, sessionID, original))

	// The underlying store only sees the envelope.
	stored, err := underlyingStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, stored.State)
	assert.Empty(t, stored.History)
	assert.NotEmpty(t, stored.Sealed)
	assert.NotContains(t, stored.Sealed, "my-secret-sauce")
	assert.Equal(t, domain.ExportVersion, stored.Version)

	loaded, err := secureStore.Load(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded.State)
	assert.Equal(t, original.State.Code, loaded.State.Code)
	assert.Equal(t, original.State.Actors, loaded.State.Actors)
	assert.Len(t, loaded.History, 1)
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()
	sessionID := "rotation-session"

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	require.NoError(t, oldStore.Save(ctx, sessionID, secretExport()))

	rotated := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)
	loaded, err := rotated.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Contains(t, loaded.State.Code, "my-secret-sauce")

	withoutFallback := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: newKey})(underlyingStore)
	_, err = withoutFallback.Load(ctx, sessionID)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decryption failed"))
}

func TestEncryptionMiddleware_RejectsPlainExports(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	require.NoError(t, underlyingStore.Save(ctx, "plain", secretExport()))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secureStore.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)

	_, err = secureStore.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestEncryptionMiddleware_InvalidKeyPanics(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	})
}

type cloningStore struct{ *MockStore }

func (s cloningStore) Save(ctx context.Context, id string, e *domain.Export) error {
	return s.MockStore.Save(ctx, id, e.Clone())
}

func (s cloningStore) Load(ctx context.Context, id string) (*domain.Export, error) {
	e, err := s.MockStore.Load(ctx, id)
	return e.Clone(), err
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := middleware.Chain(cloningStore{NewMockStore()},
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)
	ports.RunSnapshotStoreContract(t, store)
}
