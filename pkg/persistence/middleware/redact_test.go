package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactionMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	mw := middleware.NewRedactionMiddleware([]string{`token=\S+`, `\d{3}-\d{2}-\d{4}`})
	store := mw(underlyingStore)

	ctx := context.Background()
	export := secretExport()
	export.State.Actions = append(export.State.Actions,
		domain.NewLoop("until 123-45-6789 verified", domain.NewMessage("Vault", "User", "ssn 123-45-6789")),
	)

	require.NoError(t, store.Save(ctx, "pii", export))

	// The caller's export is untouched.
	assert.Contains(t, export.State.Code, "my-secret-sauce")

	stored, err := underlyingStore.Load(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, "@startuml\nUser -> Vault: ***\n@enduml", stored.State.Code)
	assert.Equal(t, "***", stored.State.Actions[0].Text)
	assert.Equal(t, "until *** verified", stored.State.Actions[1].Condition)
	assert.Equal(t, "ssn ***", stored.State.Actions[1].Actions[0].Text)
	assert.Equal(t, []string{"User", "Vault"}, stored.State.Actors)
	assert.Equal(t, "@startuml\nUser -> Vault: ***\n@enduml", stored.History[0].Code)
}

func TestChain_Order(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)
	store := middleware.Chain(underlyingStore,
		middleware.NewRedactionMiddleware([]string{`my-secret-sauce`}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s", secretExport()))

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "@startuml\nUser -> Vault: token=***\n@enduml", loaded.State.Code)

	raw, err := underlyingStore.Load(ctx, "s")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)
}
